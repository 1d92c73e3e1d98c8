package apperr

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/manday-assess/internal/nesma"
	"go.uber.org/zap"
)

const detailsPrefix = "详细错误: "

// ErrorObserver получает тип и статус каждой оттранслированной ошибки (метрики).
type ErrorObserver interface {
	ObserveError(errorType string, status int)
}

type nopObserver struct{}

func (nopObserver) ObserveError(string, int) {}

// Translator превращает ошибки в конверт с учётом режима развёртывания.
type Translator struct {
	production bool
	logger     *zap.Logger
	observer   ErrorObserver
	now        func() time.Time
	newID      func() string
}

type TranslatorOption func(*Translator)

func WithObserver(o ErrorObserver) TranslatorOption {
	return func(t *Translator) {
		if o != nil {
			t.observer = o
		}
	}
}

func WithClock(now func() time.Time) TranslatorOption {
	return func(t *Translator) { t.now = now }
}

func NewTranslator(production bool, logger *zap.Logger, opts ...TranslatorOption) *Translator {
	t := &Translator{
		production: production,
		logger:     logger.Named("errors"),
		observer:   nopObserver{},
		now:        time.Now,
		newID:      NewErrorID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewErrorID: "ERR-" и первые 8 символов случайного UUID в верхнем регистре.
func NewErrorID() string {
	return "ERR-" + strings.ToUpper(uuid.NewString()[:8])
}

func (t *Translator) Production() bool { return t.production }

// Translate: 1) новый errorId, 2) полный лог, 3) статус категории, 4) текст для клиента,
// 5) details только вне production, 6) путь запроса.
func (t *Translator) Translate(err error, path string) (int, *Envelope) {
	if err == nil {
		err = New(KindUnclassified, "nil error passed to translator")
	}
	errorID := t.newID()
	raw := err.Error()

	var (
		status    int
		errorType string
		message   string
		data      any
	)

	var ce *nesma.CalculationError
	if errors.As(err, &ce) {
		status = calculationStatus(ce.Type)
		errorType = ce.Type.Code()
		message = ce.Type.Description()
		raw = ce.FullDescription()
	} else {
		ae := From(err)
		status = ae.Kind.Status()
		errorType = ae.Kind.String()
		message = ae.Kind.userMessage(t.production)
		if ae.Kind == KindInvalidArgument && ae.Message != "" {
			message = ae.Message
			if t.production {
				message = FilterSensitive(message)
			}
		}
		if len(ae.Fields) > 0 {
			data = ae.Fields
		}
	}

	t.log(errorID, path, errorType, status, raw, err)
	t.observer.ObserveError(errorType, status)

	env := NewEnvelope(status, message, data, t.now())
	env.ErrorID = errorID
	env.ErrorType = errorType
	env.Path = path
	if !t.production {
		env.Details = detailsPrefix + raw
	}
	return status, env
}

// Write транслирует ошибку и пишет её в ответ.
func (t *Translator) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, env := t.Translate(err, r.URL.Path)
	WriteJSON(w, status, env)
}

func (t *Translator) log(errorID, path, errorType string, status int, raw string, err error) {
	fields := []zap.Field{
		zap.String("errorId", errorID),
		zap.String("path", path),
		zap.String("errorType", errorType),
		zap.Int("status", status),
		zap.String("message", raw),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		t.logger.Error("request failed", fields...)
		return
	}
	t.logger.Warn("request rejected", fields...)
}

func calculationStatus(et nesma.ErrorType) int {
	switch et {
	case nesma.ProjectNotFound:
		return http.StatusNotFound
	case nesma.InvalidFunctionPoint, nesma.DataValidationError, nesma.ComplexityDeterminationFailed:
		return http.StatusBadRequest
	case nesma.CalculationTimeout:
		return http.StatusGatewayTimeout
	case nesma.InsufficientResources:
		return http.StatusServiceUnavailable
	case nesma.WeightConfigurationError, nesma.VAFCalculationError, nesma.PrecisionCalculationError, nesma.SystemError:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
