package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind различает access- и refresh-токены.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims: полезная нагрузка JWT. В refresh-токене заполнены только UserID и Username.
type Claims struct {
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	RealName    string    `json:"realName,omitempty"`
	EmployeeID  string    `json:"employeeId,omitempty"`
	Department  string    `json:"department,omitempty"`
	Authorities []string  `json:"authorities,omitempty"`
	TokenType   TokenKind `json:"tokenType"`
	jwt.RegisteredClaims
}

// Credential: идентификатор (логин, email или табельный номер) и пароль.
type Credential struct {
	Identifier string
	Secret     string
}

// ClientInfo описывает, откуда пришёл запрос.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Secure Token Issuing
type LoginRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Password   string `json:"password" validate:"required,min=6,max=100"`
	RememberMe bool   `json:"rememberMe"`
	ClientInfo string `json:"clientInfo,omitempty"`
}

type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50,username"`
	Password        string `json:"password" validate:"required,min=8,max=100,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	RealName        string `json:"realName" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,cnphone"`
	EmployeeID      string `json:"employeeId,omitempty" validate:"omitempty,max=50"`
	Department      string `json:"department" validate:"required,min=2,max=100"`
	Position        string `json:"position" validate:"required,min=2,max=100"`
	ClientInfo      string `json:"clientInfo,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse: ответ на login и refresh.
type TokenResponse struct {
	AccessToken      string     `json:"accessToken"`
	RefreshToken     string     `json:"refreshToken"`
	TokenType        string     `json:"tokenType"` // Всегда "Bearer"
	ExpiresIn        int64      `json:"expiresIn"`
	RefreshExpiresIn int64      `json:"refreshExpiresIn,omitempty"`
	UserID           int64      `json:"userId"`
	Username         string     `json:"username"`
	RealName         string     `json:"realName,omitempty"`
	Email            string     `json:"email,omitempty"`
	EmployeeID       string     `json:"employeeId,omitempty"`
	Department       string     `json:"department,omitempty"`
	Position         string     `json:"position,omitempty"`
	Roles            []string   `json:"roles,omitempty"`
	Permissions      []string   `json:"permissions,omitempty"`
	LoginTime        *time.Time `json:"loginTime,omitempty"`
	LastLoginTime    *time.Time `json:"lastLoginTime,omitempty"`
	LoginIP          string     `json:"loginIp,omitempty"`
}
