package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/domain"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
)

// AccountManager: административные операции над учётными записями.
type AccountManager interface {
	LockAccount(ctx context.Context, actor *domain.Principal, userID int64, client domain.ClientInfo) error
	UnlockAccount(ctx context.Context, actor *domain.Principal, userID int64, client domain.ClientInfo) error
}

type AdminHandler struct {
	accounts AccountManager
	errs     auth.ErrorWriter
}

func NewAdminHandler(accounts AccountManager, errs auth.ErrorWriter) *AdminHandler {
	return &AdminHandler{accounts: accounts, errs: errs}
}

// Lock: POST /api/admin/users/{id}/lock
func (h *AdminHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.accounts.LockAccount, "账户已锁定")
}

// Unlock: POST /api/admin/users/{id}/unlock
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.accounts.UnlockAccount, "账户已解锁")
}

func (h *AdminHandler) apply(w http.ResponseWriter, r *http.Request,
	op func(context.Context, *domain.Principal, int64, domain.ClientInfo) error, message string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errs.Write(w, r, apperr.Wrap(apperr.KindTypeMismatch, err, "user id must be a positive integer"))
		return
	}
	actor, _ := auth.PrincipalFromContext(r.Context())
	if err := op(r.Context(), actor, id, clientInfo(r)); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	apperr.OK(w, message, nil)
}
