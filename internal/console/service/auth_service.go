package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/audit"
	"github.com/xela07ax/manday-assess/internal/cache"
	"github.com/xela07ax/manday-assess/internal/domain"
	"github.com/xela07ax/manday-assess/internal/infra/auth"
	"go.uber.org/zap"
)

// UserStore: всё, что шлюзу нужно от хранилища учётных записей.
type UserStore interface {
	UserFinder
	Create(ctx context.Context, u *domain.User, roleCode string) (int64, error)
	RecordLoginSuccess(ctx context.Context, id int64, ip string, at time.Time) error
	RecordLoginFailure(ctx context.Context, id int64, maxAttempts int) (attempts int, locked bool, err error)
	SetLocked(ctx context.Context, id int64, locked bool) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error)
}

// SessionStore описывает Redis-часть входа: профиль, счётчики, сессии, отозванные токены.
type SessionStore interface {
	CacheUser(ctx context.Context, p *domain.Principal) error
	CachedUser(ctx context.Context, userID int64) (*domain.Principal, bool, error)
	EvictUser(ctx context.Context, userID int64, username string) error
	IncrementFailure(ctx context.Context, username, ip string) (int64, error)
	ClearFailures(ctx context.Context, username, ip string) error
	StoreSession(ctx context.Context, sessionID string, s cache.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, sessionID string) error
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// LoginObserver считает попытки входа и выпущенные токены.
type LoginObserver interface {
	LoginAttempt(result string)
	TokenIssued(kind string)
}

// LockNotifier разносит блокировки по всем инстансам, чтобы отсечь уже выданные токены.
type LockNotifier interface {
	IsLocked(userID int64) bool
	SetLocked(ctx context.Context, userID int64, locked bool) error
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(string) {}
func (nopObserver) TokenIssued(string)  {}

// AuthOptions: политика входа.
type AuthOptions struct {
	MaxFailedAttempts   int
	PasswordExpiry      time.Duration
	BcryptCost          int
	RevalidateOnRequest bool
}

// AuthDeps: коллабораторы шлюза.
type AuthDeps struct {
	Users    UserStore
	Sessions SessionStore
	Codec    *auth.TokenCodec
	Auditor  audit.Auditor
	Observer LoginObserver
	// Locks может быть nil: тогда блокировка видна только через Postgres.
	Locks LockNotifier
}

// AuthService реализует шлюз аутентификации: проверка учётных данных, выпуск и проверка токенов.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	resolver *PrincipalResolver
	codec    *auth.TokenCodec
	auditor  audit.Auditor
	observer LoginObserver
	locks    LockNotifier
	opts     AuthOptions
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(deps AuthDeps, opts AuthOptions, logger *zap.Logger) *AuthService {
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.PasswordExpiry <= 0 {
		opts.PasswordExpiry = 90 * 24 * time.Hour
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &AuthService{
		users:    deps.Users,
		sessions: deps.Sessions,
		resolver: NewPrincipalResolver(deps.Users),
		codec:    deps.Codec,
		auditor:  deps.Auditor,
		observer: observer,
		locks:    deps.Locks,
		opts:     opts,
		logger:   logger.Named("auth-service"),
		now:      time.Now,
	}
}

// Resolver отдаёт общий резолвер, например для gRPC.
func (s *AuthService) Resolver() *PrincipalResolver { return s.resolver }

// Authenticate проверяет учётные данные.
func (s *AuthService) Authenticate(ctx context.Context, cred domain.Credential) (*domain.Principal, error) {
	_, p, err := s.authenticate(ctx, cred)
	return p, err
}

// authenticate: поиск → блокировка → отключение → пароль → срок пароля.
// Заблокированная учётная запись никогда не отвечает BadCredentials, даже при неверном пароле.
func (s *AuthService) authenticate(ctx context.Context, cred domain.Credential) (*domain.User, *domain.Principal, error) {
	identifier := strings.TrimSpace(cred.Identifier)
	if identifier == "" || cred.Secret == "" {
		return nil, nil, ErrBadCredentials
	}

	// 1. Поиск (источник правды: Postgres)
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrBadCredentials
	}

	// 2. Состояние учётной записи проверяем до пароля
	if user.IsLocked() {
		return user, nil, ErrAccountLocked
	}
	if !user.IsActive() {
		return user, nil, ErrAccountDisabled
	}

	// 3. Пароль
	if !CheckPassword(user.PasswordHash, cred.Secret) {
		return user, nil, ErrBadCredentials
	}

	// 4. Срок действия пароля
	p := s.resolver.Resolve(user)
	if !p.CredentialsNonExpired {
		return user, p, ErrCredentialsExpired
	}
	return user, p, nil
}

// Login аутентифицирует пользователя и выпускает пару токенов.
func (s *AuthService) Login(ctx context.Context, cred domain.Credential, client domain.ClientInfo) (*domain.TokenResponse, error) {
	user, p, err := s.authenticate(ctx, cred)
	if err != nil {
		s.onLoginFailure(ctx, cred.Identifier, user, client, err)
		return nil, err
	}

	now := s.now()
	access, refresh, jti, err := s.issuePair(p)
	if err != nil {
		return nil, err
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, client.IP, now); err != nil {
		s.logger.Warn("failed to record login", zap.Int64("userId", user.ID), zap.Error(err))
	}
	s.warnOnCacheError("clear failures", s.sessions.ClearFailures(ctx, user.Username, client.IP))
	s.warnOnCacheError("cache user", s.sessions.CacheUser(ctx, p))
	s.warnOnCacheError("store session", s.sessions.StoreSession(ctx, jti, cache.Session{
		UserID:    user.ID,
		Username:  user.Username,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
		LoginAt:   now,
	}, s.codec.AccessTTL()))

	s.observer.LoginAttempt("success")
	s.record(audit.AuditEvent{
		Operation:   audit.OpLogin,
		Description: "用户登录成功",
		UserID:      &user.ID,
		Username:    user.Username,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
	})
	s.logger.Info("user logged in", zap.String("username", user.Username), zap.String("ip", client.IP))

	if user.PasswordExpiringSoon(now, 7*24*time.Hour) {
		s.logger.Info("password expires soon", zap.String("username", user.Username),
			zap.Timep("passwordExpiresAt", user.PasswordExpiresAt))
	}

	loginTime := now
	return &domain.TokenResponse{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.codec.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.codec.RefreshTTL().Seconds()),
		UserID:           p.ID,
		Username:         p.Username,
		RealName:         p.RealName,
		Email:            p.Email,
		EmployeeID:       p.EmployeeID,
		Department:       p.Department,
		Position:         p.Position,
		Roles:            p.Roles,
		Permissions:      p.Permissions,
		LoginTime:        &loginTime,
		LastLoginTime:    user.LastLoginAt,
		LoginIP:          client.IP,
	}, nil
}

func (s *AuthService) onLoginFailure(ctx context.Context, identifier string, user *domain.User, client domain.ClientInfo, cause error) {
	s.observer.LoginAttempt(loginResult(cause))

	event := audit.AuditEvent{
		Operation:    audit.OpLoginFailed,
		Description:  "用户登录失败",
		Username:     identifier,
		ClientIP:     client.IP,
		UserAgent:    client.UserAgent,
		Status:       audit.StatusFailed,
		ErrorMessage: cause.Error(),
	}
	if user != nil {
		event.UserID = &user.ID
		event.Username = user.Username
	}
	s.record(event)

	if !errors.Is(cause, ErrBadCredentials) {
		return
	}

	counter := identifier
	if user != nil {
		counter = user.Username
	}
	if _, err := s.sessions.IncrementFailure(ctx, counter, client.IP); err != nil {
		s.warnOnCacheError("increment failure", err)
	}
	if user == nil {
		return
	}

	attempts, locked, err := s.users.RecordLoginFailure(ctx, user.ID, s.opts.MaxFailedAttempts)
	if err != nil {
		s.logger.Warn("failed to record login failure", zap.Int64("userId", user.ID), zap.Error(err))
		return
	}
	if !locked {
		return
	}

	s.logger.Warn("account locked after failed attempts",
		zap.String("username", user.Username), zap.Int("attempts", attempts))
	s.warnOnCacheError("evict user", s.sessions.EvictUser(ctx, user.ID, user.Username))
	s.publishLock(ctx, user.ID, true)
	s.record(audit.AuditEvent{
		Operation:   audit.OpUserLock,
		Description: fmt.Sprintf("连续登录失败%d次，账户已锁定", attempts),
		UserID:      &user.ID,
		Username:    user.Username,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
	})
}

// Validate проверяет access-токен и восстанавливает пользователя.
func (s *AuthService) Validate(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.codec.DecodeKind(token, domain.TokenAccess)
	if err != nil {
		return nil, ErrInvalidToken.WithCause(err)
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}
	if s.locks != nil && s.locks.IsLocked(claims.UserID) {
		return nil, ErrInvalidToken.WithCause(fmt.Errorf("account %s is locked", claims.Username))
	}
	if !s.opts.RevalidateOnRequest {
		return PrincipalFromClaims(claims), nil
	}

	p, err := s.currentPrincipal(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken.WithCause(err)
		}
		return nil, err
	}
	if !p.Enabled || !p.AccountNonLocked {
		return nil, ErrInvalidToken.WithCause(fmt.Errorf("account %s is not usable", p.Username))
	}
	return p, nil
}

// IsValid упрощает проверку для /validate: никогда не возвращает ошибку.
func (s *AuthService) IsValid(ctx context.Context, token string) bool {
	_, err := s.Validate(ctx, token)
	return err == nil
}

// Refresh выпускает новый access-токен по refresh-токену. Refresh-токен остаётся прежним.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.TokenResponse, error) {
	claims, err := s.codec.DecodeKind(refreshToken, domain.TokenRefresh)
	if err != nil {
		return nil, ErrInvalidToken.WithCause(err)
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken.WithCause(ErrUserNotFound)
	}
	if user.IsLocked() {
		return nil, ErrAccountLocked
	}
	if !user.IsActive() {
		return nil, ErrAccountDisabled
	}

	p := s.resolver.Resolve(user)
	access, err := s.codec.IssueAccess(p)
	if err != nil {
		return nil, err
	}
	s.observer.TokenIssued(string(domain.TokenAccess))
	s.warnOnCacheError("cache user", s.sessions.CacheUser(ctx, p))
	s.record(audit.AuditEvent{
		Operation:   audit.OpTokenRefresh,
		Description: "刷新访问令牌",
		UserID:      &user.ID,
		Username:    user.Username,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
	})

	return &domain.TokenResponse{
		AccessToken:      access,
		RefreshToken:     auth.NormalizeToken(refreshToken),
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.codec.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.codec.RemainingValidity(refreshToken).Seconds()),
		UserID:           p.ID,
		Username:         p.Username,
		RealName:         p.RealName,
		Email:            p.Email,
		EmployeeID:       p.EmployeeID,
		Department:       p.Department,
		Position:         p.Position,
		Roles:            p.Roles,
		Permissions:      p.Permissions,
		LastLoginTime:    user.LastLoginAt,
	}, nil
}

// Logout отзывает access-токен до его естественного истечения и удаляет сессию.
func (s *AuthService) Logout(ctx context.Context, token string, client domain.ClientInfo) error {
	claims, err := s.codec.DecodeKind(token, domain.TokenAccess)
	if err != nil {
		return ErrInvalidToken.WithCause(err)
	}

	if ttl := s.codec.RemainingValidity(token); ttl > 0 {
		if err := s.sessions.RevokeToken(ctx, claims.ID, ttl); err != nil {
			return err
		}
	}
	s.warnOnCacheError("delete session", s.sessions.DeleteSession(ctx, claims.ID))
	s.warnOnCacheError("evict user", s.sessions.EvictUser(ctx, claims.UserID, claims.Username))

	s.record(audit.AuditEvent{
		Operation:   audit.OpLogout,
		Description: "用户登出",
		UserID:      &claims.UserID,
		Username:    claims.Username,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
	})
	return nil
}

// Register создаёт активную учётную запись с ролью USER и паролем на PasswordExpiry.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest, client domain.ClientInfo) (*domain.Principal, error) {
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Validation(map[string]string{"confirmPassword": "两次输入的密码不一致"})
	}

	// 1. Уникальность логина, email и табельного номера
	if taken, err := s.users.ExistsByUsername(ctx, req.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("username", "用户名已存在")
	}
	if taken, err := s.users.ExistsByEmail(ctx, req.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("email", "邮箱已被注册")
	}
	if req.EmployeeID != "" {
		if taken, err := s.users.ExistsByEmployeeID(ctx, req.EmployeeID); err != nil {
			return nil, err
		} else if taken {
			return nil, apperr.Conflict("employeeId", "工号已存在")
		}
	}

	// 2. Хэш пароля и запись
	hash, err := HashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.opts.PasswordExpiry)
	user := &domain.User{
		Username:          req.Username,
		PasswordHash:      hash,
		RealName:          req.RealName,
		Email:             req.Email,
		Phone:             req.Phone,
		EmployeeID:        req.EmployeeID,
		Department:        req.Department,
		Position:          req.Position,
		Status:            domain.StatusActive,
		PasswordExpiresAt: &expires,
	}
	id, err := s.users.Create(ctx, user, domain.DefaultRoleCode)
	if err != nil {
		return nil, err
	}

	s.record(audit.AuditEvent{
		Operation:   audit.OpRegister,
		Description: "用户注册: " + audit.MaskEmail(req.Email),
		UserID:      &id,
		Username:    req.Username,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
	})
	s.logger.Info("user registered", zap.String("username", req.Username), zap.Int64("userId", id))

	return s.resolver.LoadByID(ctx, id)
}

func (s *AuthService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.users.ExistsByUsername(ctx, strings.TrimSpace(username))
	return !taken, err
}

func (s *AuthService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.users.ExistsByEmail(ctx, strings.TrimSpace(email))
	return !taken, err
}

func (s *AuthService) EmployeeIDAvailable(ctx context.Context, employeeID string) (bool, error) {
	taken, err := s.users.ExistsByEmployeeID(ctx, strings.TrimSpace(employeeID))
	return !taken, err
}

// LockAccount блокирует учётную запись от имени администратора.
func (s *AuthService) LockAccount(ctx context.Context, actor *domain.Principal, userID int64, client domain.ClientInfo) error {
	return s.setLocked(ctx, actor, userID, true, client)
}

func (s *AuthService) UnlockAccount(ctx context.Context, actor *domain.Principal, userID int64, client domain.ClientInfo) error {
	return s.setLocked(ctx, actor, userID, false, client)
}

func (s *AuthService) setLocked(ctx context.Context, actor *domain.Principal, userID int64, locked bool, client domain.ClientInfo) error {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrUserNotFound
	}
	if err := s.users.SetLocked(ctx, userID, locked); err != nil {
		return err
	}
	s.warnOnCacheError("evict user", s.sessions.EvictUser(ctx, target.ID, target.Username))
	s.publishLock(ctx, target.ID, locked)

	op, verb := audit.OpUserUnlock, "解锁用户: "
	if locked {
		op, verb = audit.OpUserLock, "锁定用户: "
	}
	event := audit.AuditEvent{
		Operation:   op,
		Description: verb + target.Username,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
	}
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	s.record(event)
	s.logger.Info("account lock changed", zap.String("target", target.Username), zap.Bool("locked", locked))
	return nil
}

// issuePair выпускает access и refresh; jti access-токена служит идентификатором сессии.
func (s *AuthService) issuePair(p *domain.Principal) (access, refresh, jti string, err error) {
	if access, err = s.codec.IssueAccess(p); err != nil {
		return "", "", "", err
	}
	if refresh, err = s.codec.IssueRefresh(p); err != nil {
		return "", "", "", err
	}
	claims, err := s.codec.Decode(access)
	if err != nil {
		return "", "", "", err
	}
	s.observer.TokenIssued(string(domain.TokenAccess))
	s.observer.TokenIssued(string(domain.TokenRefresh))
	return access, refresh, claims.ID, nil
}

// checkRevoked: при недоступном Redis токен принимается, событие пишется в лог.
func (s *AuthService) checkRevoked(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	revoked, err := s.sessions.IsRevoked(ctx, jti)
	if err != nil {
		s.logger.Warn("revocation check unavailable, accepting token", zap.String("jti", jti), zap.Error(err))
		return nil
	}
	if revoked {
		return ErrInvalidToken.WithCause(errors.New("token revoked"))
	}
	return nil
}

// currentPrincipal: сначала кэш, затем Postgres с обновлением кэша.
func (s *AuthService) currentPrincipal(ctx context.Context, userID int64) (*domain.Principal, error) {
	if p, ok, err := s.sessions.CachedUser(ctx, userID); err == nil && ok {
		return p, nil
	}
	p, err := s.resolver.LoadByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.warnOnCacheError("cache user", s.sessions.CacheUser(ctx, p))
	return p, nil
}

func (s *AuthService) publishLock(ctx context.Context, userID int64, locked bool) {
	if s.locks == nil {
		return
	}
	if err := s.locks.SetLocked(ctx, userID, locked); err != nil {
		s.logger.Warn("failed to broadcast lock state", zap.Int64("userId", userID), zap.Bool("locked", locked), zap.Error(err))
	}
}

func (s *AuthService) record(e audit.AuditEvent) {
	if s.auditor == nil {
		return
	}
	e.Module = audit.ModuleAuth
	s.auditor.Log(e)
}

func (s *AuthService) warnOnCacheError(op string, err error) {
	if err != nil {
		s.logger.Warn("login cache operation failed", zap.String("op", op), zap.Error(err))
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, ErrBadCredentials):
		return "bad_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "locked"
	case errors.Is(err, ErrAccountDisabled):
		return "disabled"
	case errors.Is(err, ErrCredentialsExpired):
		return "expired"
	}
	return "error"
}
