package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/console/handler"
	"github.com/xela07ax/manday-assess/internal/infra"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
	"go.uber.org/zap"
)

const (
	authorityAdmin      = "ROLE_ADMIN"
	authorityUserManage = "user:manage"
	authorityAuditRead  = "audit:read"
)

// Deps: всё, что нужно роутеру.
type Deps struct {
	Auth      *handler.AuthHandler
	Admin     *handler.AdminHandler
	Audit     *handler.AuditHandler
	Validator auth.TokenValidator
	Errors    auth.ErrorWriter
	// Instrument: middleware метрик; может быть nil.
	Instrument func(http.Handler) http.Handler
}

type ConsoleServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	cfg     *infra.Config
	deps    Deps
	limiter *IPRateLimiter
}

// NewConsoleServer инициализирует HTTP API со всеми зависимостями
func NewConsoleServer(cfg *infra.Config, logger *zap.Logger, deps Deps) *ConsoleServer {
	s := &ConsoleServer{
		router:  chi.NewRouter(),
		logger:  logger.Named("console-api"),
		cfg:     cfg,
		deps:    deps,
		limiter: NewIPRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateBurst),
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router
	ew := s.deps.Errors

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(ew, s.logger))
	if s.deps.Instrument != nil {
		r.Use(s.deps.Instrument)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ew.Write(w, r, apperr.New(apperr.KindNotFound, "no route for "+r.Method+" "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ew.Write(w, r, apperr.New(apperr.KindMethodNotAllowed, "method "+r.Method+" not allowed"))
	})

	// Healthcheck для мониторинга
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		apperr.OK(w, "ok", map[string]string{"status": "UP"})
	})

	authMW := auth.NewMiddleware(s.deps.Validator, ew, s.logger)

	r.Route("/api/auth", func(r chi.Router) {
		// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(ew))
			r.Post("/login", s.deps.Auth.Login)
			r.Post("/register", s.deps.Auth.Register)
		})
		r.Get("/check-username", s.deps.Auth.CheckUsername)
		r.Get("/check-email", s.deps.Auth.CheckEmail)
		r.Get("/check-employee-id", s.deps.Auth.CheckEmployeeID)
		r.Post("/refresh", s.deps.Auth.Refresh)
		r.Post("/validate", s.deps.Auth.Validate)

		// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют access-токен) ---
		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Post("/logout", s.deps.Auth.Logout)
			r.Get("/me", s.deps.Auth.Me)
		})
	})

	// Управление учётными записями
	r.Route("/api/admin/users/{id}", func(r chi.Router) {
		r.Use(authMW)
		r.Use(auth.RequireAnyAuthority(ew, authorityAdmin, authorityUserManage))
		r.Post("/lock", s.deps.Admin.Lock)
		r.Post("/unlock", s.deps.Admin.Unlock)
	})

	// Аудит
	r.Route("/api/audit", func(r chi.Router) {
		r.Use(authMW)
		r.Use(auth.RequireAnyAuthority(ew, authorityAdmin, authorityAuditRead))
		r.Get("/logs", s.deps.Audit.GetLogs)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
