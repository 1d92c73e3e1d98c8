package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/manday-assess/internal/nesma"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorIDPattern = regexp.MustCompile(`^ERR-[A-Z0-9]{8}$`)

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *countingObserver) ObserveError(errorType string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	o.calls[fmt.Sprintf("%s/%d", errorType, status)]++
}

func newObserved(production bool) (*Translator, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewTranslator(production, zap.New(core)), logs
}

func TestProductionHidesDriverDetails(t *testing.T) {
	tr, logs := newObserved(true)
	failure := errors.New(`connect failed: jdbc:postgresql://10.0.0.5:5432/manday user=admin`)

	for _, err := range []error{
		failure,
		Wrap(KindDataAccess, failure, "query users"),
		InvalidArgument(failure.Error()),
		fmt.Errorf("repo: %w", failure),
	} {
		status, env := tr.Translate(err, "/api/auth/login")

		assert.Empty(t, env.Details)
		assert.NotContains(t, strings.ToLower(env.Message), "jdbc")
		assert.NotContains(t, strings.ToLower(env.Message), "postgresql")
		assert.False(t, env.Success)
		assert.Equal(t, status, env.Code)
		assert.Regexp(t, errorIDPattern, env.ErrorID)

		body, jerr := json.Marshal(env)
		require.NoError(t, jerr)
		assert.NotContains(t, string(body), "details")
		assert.NotContains(t, string(body), "jdbc")
	}

	// Полная информация всё равно попадает в серверный лог.
	require.Equal(t, 4, logs.Len())
	for _, entry := range logs.All() {
		assert.Contains(t, entry.ContextMap()["message"], "jdbc:postgresql")
	}
}

func TestDevelopmentExposesDetails(t *testing.T) {
	tr, _ := newObserved(false)
	failure := errors.New("jdbc:postgresql://db/manday refused")

	status, env := tr.Translate(failure, "/api/projects")

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, detailsPrefix+failure.Error(), env.Details)
	assert.Contains(t, env.Details, failure.Error())
	assert.Regexp(t, errorIDPattern, env.ErrorID)
	assert.Equal(t, "UnclassifiedFailure", env.ErrorType)
	assert.Equal(t, "/api/projects", env.Path)
}

func TestValidationFailureCarriesFieldMap(t *testing.T) {
	for _, production := range []bool{true, false} {
		tr, _ := newObserved(production)

		status, env := tr.Translate(Validation(map[string]string{"username": "required"}), "/api/auth/register")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, 400, env.Code)
		assert.Equal(t, map[string]string{"username": "required"}, env.Data)
		assert.Equal(t, "ValidationFailure", env.ErrorType)
	}
}

func TestStatusMapping(t *testing.T) {
	tr, _ := newObserved(true)
	cases := map[Kind]int{
		KindBadCredentials:       401,
		KindAccountLocked:        401,
		KindAccountDisabled:      401,
		KindAccessDenied:         403,
		KindValidation:           400,
		KindConstraintViolation:  400,
		KindMalformedRequest:     400,
		KindUnsupportedMediaType: 400,
		KindMissingParameter:     400,
		KindTypeMismatch:         400,
		KindDataConflict:         409,
		KindNotFound:             404,
		KindMethodNotAllowed:     405,
		KindDataAccess:           500,
		KindRuntime:              500,
		KindUnclassified:         500,
	}
	for kind, want := range cases {
		status, env := tr.Translate(New(kind, "x"), "/")
		assert.Equal(t, want, status, kind.String())
		assert.Equal(t, want, env.Code, kind.String())
	}
}

func TestEveryKindHasMapping(t *testing.T) {
	names := map[string]bool{}
	for _, k := range Kinds() {
		assert.NotZero(t, k.Status())
		assert.NotEmpty(t, k.userMessage(true))
		assert.False(t, names[k.String()], "duplicate name %s", k)
		names[k.String()] = true
	}
	assert.Len(t, names, int(kindCount))
}

func TestInvalidArgumentPassesSafeMessage(t *testing.T) {
	prod, _ := newObserved(true)

	_, env := prod.Translate(InvalidArgument("评估周期不能早于立项日期"), "/")
	assert.Equal(t, "评估周期不能早于立项日期", env.Message)

	_, env = prod.Translate(InvalidArgument("secret mismatch"), "/")
	assert.Equal(t, filteredMessage, env.Message)
}

func TestLockedAccountIsNeverReportedAsBadCredentials(t *testing.T) {
	tr, _ := newObserved(true)
	status, env := tr.Translate(fmt.Errorf("login: %w", New(KindAccountLocked, "locked")), "/api/auth/login")

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AccountLocked", env.ErrorType)
	assert.Equal(t, "账户已被锁定，请联系管理员", env.Message)
}

func TestCalculationErrors(t *testing.T) {
	tr, _ := newObserved(false)

	status, env := tr.Translate(nesma.NewProjectNotFound(12), "/api/calc")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PROJECT_NOT_FOUND", env.ErrorType)
	assert.Equal(t, "项目数据错误", env.Message)
	assert.Contains(t, env.Details, "(项目ID: 12)")

	status, _ = tr.Translate(fmt.Errorf("calc: %w", nesma.NewCalculationTimeout(1, 3000)), "/")
	assert.Equal(t, http.StatusGatewayTimeout, status)

	status, _ = tr.Translate(nesma.NewInsufficientResources("memory", "heap"), "/")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	prod, _ := newObserved(true)
	_, env = prod.Translate(nesma.NewVAFCalculationError(5, "GSC sum overflow"), "/")
	assert.Empty(t, env.Details)
	assert.Equal(t, "VAF计算异常", env.Message)
}

func TestErrorIDsAreUnique(t *testing.T) {
	tr := NewTranslator(true, zap.NewNop())
	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, env := tr.Translate(errors.New("boom"), "/")
			ids <- env.ErrorID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.Regexp(t, errorIDPattern, id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestWriteProducesEnvelope(t *testing.T) {
	obs := &countingObserver{}
	fixed := time.Date(2025, 9, 13, 8, 30, 15, 0, time.Local)
	tr := NewTranslator(false, zap.NewNop(), WithObserver(obs), WithClock(func() time.Time { return fixed }))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	tr.Write(rec, req, New(KindUnauthenticated, "no token"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(401), body["code"])
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "2025-09-13 08:30:15", body["datetime"])
	assert.Equal(t, float64(fixed.UnixMilli()), body["timestamp"])
	assert.Equal(t, "/api/auth/me", body["path"])
	assert.Contains(t, body, "data")
	assert.Equal(t, 1, obs.calls["Unauthenticated/401"])
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, "ok", map[string]bool{"available": true})

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, 200, env.Code)
	assert.Empty(t, env.ErrorID)
	assert.NotContains(t, rec.Body.String(), "errorId")

	assert.False(t, NewEnvelope(199, "", nil, time.Now()).Success)
	assert.True(t, NewEnvelope(299, "", nil, time.Now()).Success)
	assert.False(t, NewEnvelope(300, "", nil, time.Now()).Success)
}

func TestGRPCStatusCarriesErrorID(t *testing.T) {
	tr := NewTranslator(true, zap.NewNop())

	err := tr.GRPCStatus(New(KindUnauthenticated, "expired"), "/svc/Method")
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unauthenticated, st.Code())

	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, "Unauthenticated", info.Reason)
	assert.Regexp(t, errorIDPattern, info.Metadata["errorId"])
	assert.NotContains(t, info.Metadata, "details")
}
