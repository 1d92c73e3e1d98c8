package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/audit"
	"github.com/xela07ax/manday-assess/internal/console/service"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
)

// AuditReader: чтение журнала аудита.
type AuditReader interface {
	FetchLogs(ctx context.Context, f audit.Filter) ([]service.AuditRecord, error)
}

type AuditHandler struct {
	service AuditReader
	errs    auth.ErrorWriter
}

func NewAuditHandler(s AuditReader, errs auth.ErrorWriter) *AuditHandler {
	return &AuditHandler{service: s, errs: errs}
}

// GetLogs возвращает список событий аудита с поддержкой фильтрации
// GET /api/audit/logs?username=...&operation=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	// Извлекаем фильтры из Query-параметров
	q := r.URL.Query()
	f := audit.Filter{
		Username:  strings.TrimSpace(q.Get("username")),
		Operation: audit.Operation(strings.ToUpper(strings.TrimSpace(q.Get("operation")))),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.errs.Write(w, r, apperr.Wrap(apperr.KindTypeMismatch, err, "limit must be an integer"))
			return
		}
		f.Limit = limit
	}

	logs, err := h.service.FetchLogs(r.Context(), f)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	apperr.OK(w, "查询成功", logs)
}
