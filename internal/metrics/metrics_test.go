package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveError("BadCredentials", 401)
	m.ObserveError("BadCredentials", 401)
	m.LoginAttempt("success")
	m.TokenIssued("access")
	m.SetBreakerState("postgres", 1)
	m.AuditBuffer(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("BadCredentials", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("postgres")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.AuditBufferFill))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRegistryIsAllowed(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(nil).LoginAttempt("locked")
		NewMetrics(nil).LoginAttempt("locked")
	})
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/admin/users/{id}/lock", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users/42/lock", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
