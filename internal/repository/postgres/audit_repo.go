package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/manday-assess/internal/audit"
)

const (
	auditColumns   = "id, operation, module, description, user_id, username, client_ip, user_agent, risk_level, status, error_message, signature, created_at"
	auditNumFields = 13
	defaultLimit   = 100
	maxLimit       = 1000
)

type AuditRepo struct {
	db *sql.DB
}

// OpenAuditDB открывает пул database/sql поверх драйвера pgx.
func OpenAuditDB(connString string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open audit db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// WriteBatch вставляет пачку событий одним INSERT.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(events))
	vals := make([]any, 0, len(events)*auditNumFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * auditNumFields
		ph := make([]string, auditNumFields)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", p+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		vals = append(vals,
			e.ID, string(e.Operation), e.Module, e.Description, e.UserID, e.Username,
			e.ClientIP, e.UserAgent, string(e.RiskLevel), e.Status, e.ErrorMessage, e.Signature, e.Timestamp,
		)
	}

	query := fmt.Sprintf("INSERT INTO audit_logs (%s) VALUES %s", auditColumns, strings.Join(placeholders, ", "))
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: write audit batch: %w", err)
	}
	return nil
}

// FetchLogs возвращает последние события журнала, новые первыми.
func (r *AuditRepo) FetchLogs(ctx context.Context, f audit.Filter) ([]audit.AuditEvent, error) {
	var (
		conds []string
		args  []any
	)
	if f.Username != "" {
		args = append(args, f.Username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}
	if f.Operation != "" {
		args = append(args, string(f.Operation))
		conds = append(conds, fmt.Sprintf("operation = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	args = append(args, limit)

	query := "SELECT " + auditColumns + " FROM audit_logs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]audit.AuditEvent, 0)
	for rows.Next() {
		var (
			e         audit.AuditEvent
			op, risk  string
			userID    sql.NullInt64
			userAgent sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&e.ID, &op, &e.Module, &e.Description, &userID, &e.Username,
			&e.ClientIP, &userAgent, &risk, &e.Status, &errMsg, &e.Signature, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan audit log: %w", err)
		}
		e.Operation = audit.Operation(op)
		e.RiskLevel = audit.RiskLevel(risk)
		e.UserAgent = userAgent.String
		e.ErrorMessage = errMsg.String
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
