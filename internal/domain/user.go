package domain

import "time"

// AccountStatus: состояние учётной записи.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusInactive  AccountStatus = "INACTIVE"
	StatusLocked    AccountStatus = "LOCKED"
	StatusSuspended AccountStatus = "SUSPENDED"
)

// DefaultRoleCode назначается при самостоятельной регистрации.
const DefaultRoleCode = "USER"

type Permission struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Module string `json:"module,omitempty"`
	Active bool   `json:"active"`
}

type Role struct {
	ID          int64        `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Active      bool         `json:"active"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// User: учётная запись в том виде, в каком она хранится в Postgres.
type User struct {
	ID                  int64         `json:"id"`
	Username            string        `json:"username"`
	PasswordHash        string        `json:"-"` // Никогда не отправляем на фронт
	RealName            string        `json:"realName"`
	Email               string        `json:"email"`
	Phone               string        `json:"phone,omitempty"`
	EmployeeID          string        `json:"employeeId,omitempty"`
	Department          string        `json:"department,omitempty"`
	Position            string        `json:"position,omitempty"`
	Status              AccountStatus `json:"status"`
	FailedLoginAttempts int           `json:"failedLoginAttempts"`
	LockedAt            *time.Time    `json:"lockedAt,omitempty"`
	LastLoginAt         *time.Time    `json:"lastLoginAt,omitempty"`
	LastLoginIP         string        `json:"lastLoginIp,omitempty"`
	PasswordExpiresAt   *time.Time    `json:"passwordExpiresAt,omitempty"`
	Roles               []Role        `json:"roles,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

func (u *User) IsActive() bool { return u.Status == StatusActive }

func (u *User) IsLocked() bool { return u.Status == StatusLocked }

// PasswordExpired: срок не задан, пароль бессрочный.
func (u *User) PasswordExpired(now time.Time) bool {
	return u.PasswordExpiresAt != nil && !now.Before(*u.PasswordExpiresAt)
}

// PasswordExpiringSoon: до истечения пароля осталось не больше window.
func (u *User) PasswordExpiringSoon(now time.Time, window time.Duration) bool {
	if u.PasswordExpiresAt == nil || u.PasswordExpired(now) {
		return false
	}
	return u.PasswordExpiresAt.Sub(now) <= window
}
