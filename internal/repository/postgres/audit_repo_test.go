package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/manday-assess/internal/audit"
)

func newMockRepo(t *testing.T) (*AuditRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuditRepo(db), mock
}

func TestWriteBatchBuildsSingleInsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	uid := int64(7)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []audit.AuditEvent{
		{ID: "a", Operation: audit.OpLogin, Module: audit.ModuleAuth, UserID: &uid, Username: "zhang", RiskLevel: audit.RiskLow, Status: audit.StatusSuccess, Timestamp: ts},
		{ID: "b", Operation: audit.OpLoginFailed, Module: audit.ModuleAuth, Username: "li", RiskLevel: audit.RiskMedium, Status: audit.StatusFailed, ErrorMessage: "bad", Timestamp: ts},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs (" + auditColumns + ") VALUES ($1, ")).
		WithArgs(
			"a", "LOGIN", "AUTH", "", &uid, "zhang", "", "", "LOW", "SUCCESS", "", "", ts,
			"b", "LOGIN_FAILED", "AUTH", "", (*int64)(nil), "li", "", "", "MEDIUM", "FAILED", "bad", "", ts,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.WriteBatch(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchEmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	require.NoError(t, repo.WriteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteBatchWrapsError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(boom)

	err := repo.WriteBatch(context.Background(), []audit.AuditEvent{{ID: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestFetchLogsAppliesFilterAndLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "operation", "module", "description", "user_id", "username",
		"client_ip", "user_agent", "risk_level", "status", "error_message", "signature", "created_at"}).
		AddRow("a", "LOGIN", "AUTH", "登录成功", int64(3), "zhang", "10.0.0.1", nil, "LOW", "SUCCESS", nil, "sig", ts).
		AddRow("b", "LOGIN", "AUTH", "登录成功", nil, "zhang", "10.0.0.2", "curl", "LOW", "SUCCESS", nil, "sig2", ts)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT " + auditColumns + " FROM audit_logs WHERE username = $1 AND operation = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("zhang", "LOGIN", maxLimit).
		WillReturnRows(rows)

	logs, err := repo.FetchLogs(context.Background(), audit.Filter{Username: "zhang", Operation: audit.OpLogin, Limit: 5000})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, int64(3), *logs[0].UserID)
	assert.Equal(t, audit.OpLogin, logs[0].Operation)
	assert.Empty(t, logs[0].UserAgent)
	assert.Nil(t, logs[1].UserID)
	assert.Equal(t, "curl", logs[1].UserAgent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLogsDefaultsWithoutFilter(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs ORDER BY created_at DESC LIMIT $1")).
		WithArgs(defaultLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	logs, err := repo.FetchLogs(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.NotNil(t, logs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
