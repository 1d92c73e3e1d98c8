package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/manday-assess/internal/audit"
)

// AuditLogProvider описывает контракт для чтения журнала аудита.
type AuditLogProvider interface {
	FetchLogs(ctx context.Context, f audit.Filter) ([]audit.AuditEvent, error)
}

type AuditService struct {
	repo   AuditLogProvider
	signer *audit.Signer
}

func NewAuditService(repo AuditLogProvider, signer *audit.Signer) *AuditService {
	return &AuditService{
		repo:   repo,
		signer: signer,
	}
}

// AuditRecord: событие журнала с результатом проверки подписи.
type AuditRecord struct {
	audit.AuditEvent
	Verified bool `json:"verified"`
}

// FetchLogs запрашивает логи с фильтрацией и сверяет подписи.
func (s *AuditService) FetchLogs(ctx context.Context, f audit.Filter) ([]AuditRecord, error) {
	logs, err := s.repo.FetchLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	out := make([]AuditRecord, 0, len(logs))
	for i := range logs {
		out = append(out, AuditRecord{
			AuditEvent: logs[i],
			Verified:   s.signer != nil && s.signer.Verify(&logs[i]),
		})
	}
	return out, nil
}
