package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/manday-assess/internal/domain"
	"github.com/xela07ax/manday-assess/internal/infra"
	"go.uber.org/zap"
)

const (
	UserTTL    = 30 * time.Minute
	FailureTTL = 15 * time.Minute
	SessionTTL = 24 * time.Hour
)

// Session: сведения о входе, привязанные к jti access-токена.
type Session struct {
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent,omitempty"`
	LoginAt   time.Time `json:"loginAt"`
}

// LoginCache хранит в Redis профиль пользователя, счётчики неудачных входов,
// сессии и список отозванных токенов.
type LoginCache struct {
	rdb    *redis.Client
	guard  *infra.Guard
	logger *zap.Logger
}

func NewLoginCache(rdb *redis.Client, guard *infra.Guard, logger *zap.Logger) *LoginCache {
	return &LoginCache{rdb: rdb, guard: guard, logger: logger.Named("login-cache")}
}

// CacheUser кладёт профиль и индекс username → id.
func (c *LoginCache) CacheUser(ctx context.Context, p *domain.Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache: marshal principal: %w", err)
	}
	return c.guard.Do(ctx, func(ctx context.Context) error {
		pipe := c.rdb.TxPipeline()
		pipe.Set(ctx, infra.LoginUserKey(p.ID), data, UserTTL)
		pipe.Set(ctx, infra.LoginUsernameKey(p.Username), p.ID, UserTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// CachedUser возвращает профиль из кэша; ok=false при промахе.
func (c *LoginCache) CachedUser(ctx context.Context, userID int64) (*domain.Principal, bool, error) {
	data, err := infra.Execute(ctx, c.guard, func(ctx context.Context) ([]byte, error) {
		b, err := c.rdb.Get(ctx, infra.LoginUserKey(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, infra.Permanent(err)
		}
		return b, err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p domain.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal principal: %w", err)
	}
	return &p, true, nil
}

// CachedUserID: id по имени пользователя.
func (c *LoginCache) CachedUserID(ctx context.Context, username string) (int64, bool, error) {
	raw, err := infra.Execute(ctx, c.guard, func(ctx context.Context) (string, error) {
		s, err := c.rdb.Get(ctx, infra.LoginUsernameKey(username)).Result()
		if errors.Is(err, redis.Nil) {
			return "", infra.Permanent(err)
		}
		return s, err
	})
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cache: corrupted user id %q: %w", raw, err)
	}
	return id, true, nil
}

func (c *LoginCache) EvictUser(ctx context.Context, userID int64, username string) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		return c.rdb.Del(ctx, infra.LoginUserKey(userID), infra.LoginUsernameKey(username)).Err()
	})
}

// IncrementFailure увеличивает счётчик неудач для пары пользователь+IP и продлевает окно.
func (c *LoginCache) IncrementFailure(ctx context.Context, username, ip string) (int64, error) {
	key := infra.LoginFailureKey(username, ip)
	return infra.Execute(ctx, c.guard, func(ctx context.Context) (int64, error) {
		pipe := c.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, FailureTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return incr.Val(), nil
	})
}

func (c *LoginCache) FailureCount(ctx context.Context, username, ip string) (int64, error) {
	n, err := infra.Execute(ctx, c.guard, func(ctx context.Context) (int64, error) {
		n, err := c.rdb.Get(ctx, infra.LoginFailureKey(username, ip)).Int64()
		if errors.Is(err, redis.Nil) {
			return 0, infra.Permanent(err)
		}
		return n, err
	})
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *LoginCache) ClearFailures(ctx context.Context, username, ip string) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		return c.rdb.Del(ctx, infra.LoginFailureKey(username, ip)).Err()
	})
}

func (c *LoginCache) StoreSession(ctx context.Context, sessionID string, s Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cache: marshal session: %w", err)
	}
	return c.guard.Do(ctx, func(ctx context.Context) error {
		return c.rdb.Set(ctx, infra.LoginSessionKey(sessionID), data, ttl).Err()
	})
}

func (c *LoginCache) GetSession(ctx context.Context, sessionID string) (*Session, bool, error) {
	data, err := infra.Execute(ctx, c.guard, func(ctx context.Context) ([]byte, error) {
		b, err := c.rdb.Get(ctx, infra.LoginSessionKey(sessionID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, infra.Permanent(err)
		}
		return b, err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal session: %w", err)
	}
	return &s, true, nil
}

func (c *LoginCache) DeleteSession(ctx context.Context, sessionID string) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		return c.rdb.Del(ctx, infra.LoginSessionKey(sessionID)).Err()
	})
}

// RevokeToken держит jti в denylist до естественного истечения токена.
func (c *LoginCache) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return c.guard.Do(ctx, func(ctx context.Context) error {
		return c.rdb.Set(ctx, infra.RevokedTokenKey(tokenID), 1, ttl).Err()
	})
}

func (c *LoginCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	return infra.Execute(ctx, c.guard, func(ctx context.Context) (bool, error) {
		n, err := c.rdb.Exists(ctx, infra.RevokedTokenKey(tokenID)).Result()
		return n > 0, err
	})
}
