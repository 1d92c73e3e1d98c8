package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator восстанавливает пользователя из access-токена.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*domain.Principal, error)
}

// ErrorWriter превращает ошибку в конверт ответа.
type ErrorWriter interface {
	Write(w http.ResponseWriter, r *http.Request, err error)
}

var errMissingToken = apperr.New(apperr.KindUnauthenticated, "missing bearer token")

// NewMiddleware пропускает запрос дальше только с валидным Bearer-токеном.
func NewMiddleware(v TokenValidator, ew ErrorWriter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				ew.Write(w, r, errMissingToken)
				return
			}

			principal, err := v.Validate(r.Context(), token)
			if err != nil {
				logger.Warn("auth failure", zap.String("path", r.URL.Path), zap.Error(err))
				ew.Write(w, r, err)
				return
			}

			// Прокидываем данные в контекст
			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = ContextWithToken(ctx, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyAuthority пропускает пользователя, у которого есть хотя бы одно из полномочий.
func RequireAnyAuthority(ew ErrorWriter, authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				ew.Write(w, r, errMissingToken)
				return
			}
			if !p.HasAnyAuthority(authorities...) {
				ew.Write(w, r, apperr.New(apperr.KindAccessDenied,
					"user "+p.Username+" lacks any of "+strings.Join(authorities, ",")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractBearerToken достаёт токен из заголовка Authorization.
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
