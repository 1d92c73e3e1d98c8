package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/xela07ax/manday-assess/internal/domain"
)

const (
	DefaultIssuer     = "manday-assess-system"
	DefaultAudience   = "changsha-finance-gov"
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// Ключ HS512 генерируется на 512 бит; короче 256 бит не принимаем.
	generatedKeyBytes = 64
	minKeyBytes       = 32
)

var (
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrMalformed        = errors.New("auth: malformed token")
	ErrExpired          = errors.New("auth: token expired")
	ErrUnsupported      = errors.New("auth: unsupported token")
	ErrEmptyKey         = errors.New("auth: signing key is empty")
)

// TokenCodec выпускает и проверяет HMAC-подписанные JWT.
// После создания не изменяется, поэтому безопасен для конкурентного использования.
type TokenCodec struct {
	key        []byte
	method     *jwt.SigningMethodHMAC
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*TokenCodec)

func WithIssuer(issuer string) Option {
	return func(c *TokenCodec) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

func WithAudience(audience string) Option {
	return func(c *TokenCodec) {
		if audience != "" {
			c.audience = audience
		}
	}
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithSigningMethod принимает HS256, HS384 или HS512. Прочие значения игнорируются.
func WithSigningMethod(alg string) Option {
	return func(c *TokenCodec) {
		if m, ok := jwt.GetSigningMethod(strings.ToUpper(alg)).(*jwt.SigningMethodHMAC); ok {
			c.method = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(key []byte, opts ...Option) (*TokenCodec, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("auth: signing key must be at least %d bytes, got %d", minKeyBytes, len(key))
	}
	c := &TokenCodec{
		key:        append([]byte(nil), key...),
		method:     jwt.SigningMethodHS512,
		issuer:     DefaultIssuer,
		audience:   DefaultAudience,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveSigningKey декодирует base64-секрет из конфигурации.
// Пустой секрет означает эфемерный ключ: все токены станут недействительны после рестарта.
func ResolveSigningKey(secret string) (key []byte, generated bool, err error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		key = make([]byte, generatedKeyBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, false, fmt.Errorf("auth: generate signing key: %w", err)
		}
		return key, true, nil
	}
	key, err = base64.StdEncoding.DecodeString(secret)
	if err != nil {
		if key, err = base64.RawURLEncoding.DecodeString(secret); err != nil {
			return nil, false, fmt.Errorf("auth: signing secret is not valid base64: %w", err)
		}
	}
	if len(key) < minKeyBytes {
		return nil, false, fmt.Errorf("auth: signing key must be at least %d bytes, got %d", minKeyBytes, len(key))
	}
	return key, false, nil
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess и IssueRefresh: выпуск с TTL из настроек.
func (c *TokenCodec) IssueAccess(p *domain.Principal) (string, error) {
	return c.Issue(p, domain.TokenAccess, c.accessTTL)
}

func (c *TokenCodec) IssueRefresh(p *domain.Principal) (string, error) {
	return c.Issue(p, domain.TokenRefresh, c.refreshTTL)
}

// Issue подписывает токен. Access содержит полный список полномочий, refresh-токен несёт только идентичность.
func (c *TokenCodec) Issue(p *domain.Principal, kind domain.TokenKind, ttl time.Duration) (string, error) {
	if p == nil {
		return "", fmt.Errorf("auth: cannot issue token for nil principal")
	}
	if kind != domain.TokenAccess && kind != domain.TokenRefresh {
		return "", fmt.Errorf("%w: kind %q", ErrUnsupported, kind)
	}

	now := c.now()
	claims := &domain.Claims{
		UserID:    p.ID,
		Username:  p.Username,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   p.Username,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry(now, ttl)),
		},
	}
	if kind == domain.TokenAccess {
		claims.RealName = p.RealName
		claims.EmployeeID = p.EmployeeID
		claims.Department = p.Department
		claims.Authorities = p.Authorities.Values()
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode проверяет подпись, затем срок, издателя и аудиторию.
func (c *TokenCodec) Decode(tokenStr string) (*domain.Claims, error) {
	claims := &domain.Claims{}
	tokenStr = NormalizeToken(tokenStr)
	_, err := jwt.ParseWithClaims(tokenStr, claims, c.keyFunc,
		jwt.WithStrictDecoding(),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && brokenSignatureSegment(tokenStr) {
			return nil, ErrInvalidSignature
		}
		return nil, classify(err)
	}
	return claims, nil
}

// DecodeKind дополнительно требует конкретный вид токена.
func (c *TokenCodec) DecodeKind(tokenStr string, kind domain.TokenKind) (*domain.Claims, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrUnsupported, kind, claims.TokenType)
	}
	return claims, nil
}

// RemainingValidity: сколько осталось жить токену; 0 для истёкших и непроверяемых.
func (c *TokenCodec) RemainingValidity(tokenStr string) time.Duration {
	claims := &domain.Claims{}
	_, err := jwt.ParseWithClaims(NormalizeToken(tokenStr), claims, c.keyFunc,
		jwt.WithStrictDecoding(), jwt.WithoutClaimsValidation())
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	if left := claims.ExpiresAt.Sub(c.now()); left > 0 {
		return left
	}
	return 0
}

// IsExpired: битый или чужой токен считается истёкшим.
func (c *TokenCodec) IsExpired(tokenStr string) bool {
	return c.RemainingValidity(tokenStr) <= 0
}

// IsExpiringSoon истинно только при 0 < remaining <= window.
func (c *TokenCodec) IsExpiringSoon(tokenStr string, window time.Duration) bool {
	left := c.RemainingValidity(tokenStr)
	return left > 0 && left <= window
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method == nil || token.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("%w: unexpected signing method: %v", ErrUnsupported, token.Header["alg"])
	}
	return c.key, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnsupported):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// expiry: NumericDate хранит целые секунды, поэтому при ttl > 0 срок округляется вверх,
// иначе exp может совпасть с iat.
func expiry(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if ttl <= 0 {
		return exp
	}
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// brokenSignatureSegment: заголовок и payload читаются, а подпись нет.
func brokenSignatureSegment(tokenStr string) bool {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return false
	}
	enc := base64.RawURLEncoding.Strict()
	for _, part := range parts[:2] {
		if _, err := enc.DecodeString(part); err != nil {
			return false
		}
	}
	_, err := enc.DecodeString(parts[2])
	return err != nil
}

// NormalizeToken убирает пробелы и необязательный префикс "Bearer ".
func NormalizeToken(tokenStr string) string {
	tokenStr = strings.TrimSpace(tokenStr)
	if len(tokenStr) > 7 && strings.EqualFold(tokenStr[:7], "Bearer ") {
		tokenStr = tokenStr[7:]
	}
	return strings.TrimSpace(tokenStr)
}
