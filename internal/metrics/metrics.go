package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: время обработки HTTP-запросов по шаблону маршрута
	RequestDuration *prometheus.HistogramVec

	// Auth: попытки входа по результату (success, bad_credentials, locked, disabled, ...)
	LoginAttempts *prometheus.CounterVec

	// Auth: выпущенные токены по виду (access, refresh)
	TokensIssued *prometheus.CounterVec

	// Errors: конверты ошибок по errorType и статусу
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge

	// Audit: события, отброшенные при переполнении
	AuditDropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manday_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),

		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manday_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"result"}),

		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manday_tokens_issued_total",
			Help: "Issued JWT tokens by kind.",
		}, []string{"kind"}),

		ErrorTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manday_errors_total",
			Help: "Error envelopes by error type and status.",
		}, []string{"type", "status"}),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "manday_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"resource"}),

		AuditBufferFill: f.NewGauge(prometheus.GaugeOpts{
			Name: "manday_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),

		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "manday_audit_dropped_total",
			Help: "Audit events dropped because the buffer was full or closed.",
		}),
	}
}

// ObserveError реализует apperr.ErrorObserver.
func (m *Metrics) ObserveError(errorType string, status int) {
	m.ErrorTotal.WithLabelValues(errorType, strconv.Itoa(status)).Inc()
}

// SetBreakerState реализует infra.StateObserver.
func (m *Metrics) SetBreakerState(name string, value float64) {
	m.CircuitBreakerState.WithLabelValues(name).Set(value)
}

func (m *Metrics) LoginAttempt(result string) { m.LoginAttempts.WithLabelValues(result).Inc() }

func (m *Metrics) TokenIssued(kind string) { m.TokensIssued.WithLabelValues(kind).Inc() }

func (m *Metrics) AuditBuffer(n int) { m.AuditBufferFill.Set(float64(n)) }

func (m *Metrics) AuditDrop() { m.AuditDropped.Inc() }

// Middleware измеряет латентность по шаблону маршрута chi, а не по сырому пути.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
