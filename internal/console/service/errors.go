package service

import "github.com/xela07ax/manday-assess/internal/apperr"

var (
	ErrBadCredentials     = apperr.New(apperr.KindBadCredentials, "bad credentials")
	ErrAccountLocked      = apperr.New(apperr.KindAccountLocked, "account is locked")
	ErrAccountDisabled    = apperr.New(apperr.KindAccountDisabled, "account is disabled")
	ErrCredentialsExpired = apperr.New(apperr.KindCredentialsExpired, "credentials expired")
	ErrInvalidToken       = apperr.New(apperr.KindUnauthenticated, "invalid token")
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")
)
