package service

import (
	"context"
	"strings"
	"time"

	"github.com/xela07ax/manday-assess/internal/domain"
)

// UserFinder: чтение учётных записей вместе с ролями и правами.
// Отсутствие пользователя обозначается nil, nil.
type UserFinder interface {
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// PrincipalResolver превращает хранимую учётную запись в снимок полномочий.
type PrincipalResolver struct {
	users UserFinder
	now   func() time.Time
}

func NewPrincipalResolver(users UserFinder) *PrincipalResolver {
	return &PrincipalResolver{users: users, now: time.Now}
}

// Resolve разворачивает роли в плоский набор: ROLE_<code> плюс коды прав.
// Неактивные роли и права пропускаются, повторы схлопываются.
func (r *PrincipalResolver) Resolve(u *domain.User) *domain.Principal {
	if u == nil {
		return nil
	}

	var roles, perms []string
	for _, role := range u.Roles {
		if !role.Active {
			continue
		}
		roles = append(roles, role.Code)
		for _, p := range role.Permissions {
			if p.Active {
				perms = append(perms, p.Code)
			}
		}
	}

	authorities := make([]string, 0, len(roles)+len(perms))
	for _, code := range roles {
		authorities = append(authorities, domain.RolePrefix+code)
	}
	authorities = append(authorities, perms...)

	return &domain.Principal{
		ID:                    u.ID,
		Username:              u.Username,
		RealName:              u.RealName,
		Email:                 u.Email,
		EmployeeID:            u.EmployeeID,
		Department:            u.Department,
		Position:              u.Position,
		Enabled:               u.IsActive(),
		AccountNonLocked:      !u.IsLocked(),
		CredentialsNonExpired: !u.PasswordExpired(r.now()),
		PasswordExpiresAt:     u.PasswordExpiresAt,
		LastLoginAt:           u.LastLoginAt,
		Roles:                 domain.NewAuthoritySet(roles...).Values(),
		Permissions:           domain.NewAuthoritySet(perms...).Values(),
		Authorities:           domain.NewAuthoritySet(authorities...),
	}
}

// LoadByIdentifier ищет по логину, email или табельному номеру (первое совпадение).
func (r *PrincipalResolver) LoadByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error) {
	u, err := r.users.FindByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return r.Resolve(u), nil
}

func (r *PrincipalResolver) LoadByID(ctx context.Context, id int64) (*domain.Principal, error) {
	u, err := r.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return r.Resolve(u), nil
}

// PrincipalFromClaims восстанавливает пользователя из access-токена без обращения к хранилищу.
func PrincipalFromClaims(c *domain.Claims) *domain.Principal {
	var roles, perms []string
	for _, a := range c.Authorities {
		if code, ok := strings.CutPrefix(a, domain.RolePrefix); ok {
			roles = append(roles, code)
		} else {
			perms = append(perms, a)
		}
	}
	return &domain.Principal{
		ID:                    c.UserID,
		Username:              c.Username,
		RealName:              c.RealName,
		EmployeeID:            c.EmployeeID,
		Department:            c.Department,
		Enabled:               true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
		Roles:                 domain.NewAuthoritySet(roles...).Values(),
		Permissions:           domain.NewAuthoritySet(perms...).Values(),
		Authorities:           domain.NewAuthoritySet(c.Authorities...),
	}
}
