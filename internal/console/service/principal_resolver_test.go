package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/manday-assess/internal/domain"
)

func TestResolveFlattensOverlappingRoles(t *testing.T) {
	shared := domain.Permission{ID: 1, Code: "project:read", Active: true}
	u := &domain.User{
		ID:       1,
		Username: "zhang",
		Status:   domain.StatusActive,
		Roles: []domain.Role{
			{Code: "ANALYST", Active: true, Permissions: []domain.Permission{shared, {Code: "calc:run", Active: true}}},
			{Code: "REVIEWER", Active: true, Permissions: []domain.Permission{shared, {Code: "calc:approve", Active: false}}},
			{Code: "RETIRED", Active: false, Permissions: []domain.Permission{{Code: "legacy:all", Active: true}}},
		},
	}

	p := NewPrincipalResolver(newFakeUsers()).Resolve(u)

	assert.Equal(t, []string{"ANALYST", "REVIEWER"}, p.Roles)
	assert.Equal(t, []string{"calc:run", "project:read"}, p.Permissions)
	assert.Equal(t, []string{"ROLE_ANALYST", "ROLE_REVIEWER", "calc:run", "project:read"}, p.Authorities.Values())
	assert.False(t, p.HasAuthority("calc:approve"))
	assert.False(t, p.HasAuthority("legacy:all"))
	assert.False(t, p.HasAuthority("ROLE_RETIRED"))
}

func TestResolveAccountFlags(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Second), now.Add(time.Hour)

	tests := []struct {
		name                           string
		status                         domain.AccountStatus
		expires                        *time.Time
		enabled, nonLocked, nonExpired bool
	}{
		{"active", domain.StatusActive, nil, true, true, true},
		{"active with future expiry", domain.StatusActive, &future, true, true, true},
		{"expired password", domain.StatusActive, &past, true, true, false},
		{"locked", domain.StatusLocked, nil, false, false, true},
		{"suspended", domain.StatusSuspended, nil, false, true, true},
	}

	r := NewPrincipalResolver(newFakeUsers())
	r.now = func() time.Time { return now }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.Resolve(&domain.User{Status: tt.status, PasswordExpiresAt: tt.expires})
			assert.Equal(t, tt.enabled, p.Enabled)
			assert.Equal(t, tt.nonLocked, p.AccountNonLocked)
			assert.Equal(t, tt.nonExpired, p.CredentialsNonExpired)
		})
	}
}

func TestLoadByIdentifier(t *testing.T) {
	u := &domain.User{ID: 3, Username: "li", Email: "li@cs.gov.cn", EmployeeID: "E3", Status: domain.StatusActive}
	r := NewPrincipalResolver(newFakeUsers(u))
	ctx := context.Background()

	p, err := r.LoadByIdentifier(ctx, " li@cs.gov.cn ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)

	_, err = r.LoadByIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPrincipalFromClaimsSplitsAuthorities(t *testing.T) {
	p := PrincipalFromClaims(&domain.Claims{
		UserID:      4,
		Username:    "wang",
		Authorities: []string{"ROLE_ADMIN", "user:manage", "ROLE_ADMIN"},
	})
	assert.Equal(t, []string{"ADMIN"}, p.Roles)
	assert.Equal(t, []string{"user:manage"}, p.Permissions)
	assert.Equal(t, 2, p.Authorities.Len())
	assert.True(t, p.Enabled)
}
