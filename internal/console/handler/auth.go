package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/domain"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
)

// AuthGateway: операции шлюза аутентификации, доступные через HTTP.
type AuthGateway interface {
	Login(ctx context.Context, cred domain.Credential, client domain.ClientInfo) (*domain.TokenResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest, client domain.ClientInfo) (*domain.Principal, error)
	Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.TokenResponse, error)
	Logout(ctx context.Context, token string, client domain.ClientInfo) error
	IsValid(ctx context.Context, token string) bool
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
	EmployeeIDAvailable(ctx context.Context, employeeID string) (bool, error)
}

type AuthHandler struct {
	service  AuthGateway
	errs     auth.ErrorWriter
	validate *validator.Validate
}

func NewAuthHandler(s AuthGateway, errs auth.ErrorWriter, v *validator.Validate) *AuthHandler {
	return &AuthHandler{service: s, errs: errs, validate: v}
}

// Login: POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if err := apperr.ValidateStruct(h.validate, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), domain.Credential{Identifier: req.Username, Secret: req.Password}, clientInfo(r))
	if err != nil {
		// не уточняем, что именно неверно (логин или пароль): это решает транслятор
		h.errs.Write(w, r, err)
		return
	}
	apperr.OK(w, "登录成功", resp)
}

// Register: POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if err := apperr.ValidateStruct(h.validate, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	p, err := h.service.Register(r.Context(), req, clientInfo(r))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	apperr.Created(w, "注册成功", p)
}

// CheckUsername: GET /api/auth/check-username?username=
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	h.checkAvailable(w, r, "username", h.service.UsernameAvailable)
}

// CheckEmail: GET /api/auth/check-email?email=
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	h.checkAvailable(w, r, "email", h.service.EmailAvailable)
}

// CheckEmployeeID: GET /api/auth/check-employee-id?employeeId=
func (h *AuthHandler) CheckEmployeeID(w http.ResponseWriter, r *http.Request) {
	h.checkAvailable(w, r, "employeeId", h.service.EmployeeIDAvailable)
}

func (h *AuthHandler) checkAvailable(w http.ResponseWriter, r *http.Request, param string,
	check func(context.Context, string) (bool, error)) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		h.errs.Write(w, r, apperr.MissingParameter(param))
		return
	}
	available, err := check(r.Context(), value)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	apperr.OK(w, "检查完成", available)
}

// Refresh: POST /api/auth/refresh?refreshToken= или JSON {"refreshToken": "..."}
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("refreshToken"))
	if token == "" && r.ContentLength != 0 {
		var req domain.RefreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.errs.Write(w, r, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		h.errs.Write(w, r, apperr.MissingParameter("refreshToken"))
		return
	}

	resp, err := h.service.Refresh(r.Context(), token, clientInfo(r))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	apperr.OK(w, "令牌刷新成功", resp)
}

// Logout: POST /api/auth/logout (требует токен)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), auth.TokenFromContext(r.Context()), clientInfo(r)); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	apperr.OK(w, "登出成功", nil)
}

// Me: GET /api/auth/me (требует токен)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, apperr.New(apperr.KindUnauthenticated, "no principal in context"))
		return
	}
	apperr.OK(w, "获取用户信息成功", p)
}

// Validate: POST /api/auth/validate?token=; никогда не отвечает ошибкой.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.ExtractBearerToken(r.Header.Get("Authorization"))
	}
	apperr.OK(w, "验证完成", token != "" && h.service.IsValid(r.Context(), token))
}
