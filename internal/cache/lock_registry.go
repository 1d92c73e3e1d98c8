package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/manday-assess/internal/infra"
	"go.uber.org/zap"
)

// LockRegistry держит в памяти (L1) множество заблокированных пользователей и
// синхронизирует его между инстансами через Redis (множество + pub/sub).
// Так блокировка администратором сразу отсекает уже выданные access-токены.
type LockRegistry struct {
	mu     sync.RWMutex
	locked map[int64]struct{}
	rdb    *redis.Client
	logger *zap.Logger
}

func NewLockRegistry(rdb *redis.Client, logger *zap.Logger) *LockRegistry {
	return &LockRegistry{
		locked: make(map[int64]struct{}),
		rdb:    rdb,
		logger: logger.Named("lock-registry"),
	}
}

// Init загружает текущее состояние блокировок из Redis (L2 → L1).
func (m *LockRegistry) Init(ctx context.Context) error {
	members, err := m.rdb.SMembers(ctx, infra.RedisKeyLockedUsers).Result()
	if err != nil {
		return err
	}

	fresh := make(map[int64]struct{}, len(members))
	for _, raw := range members {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			m.logger.Warn("skipping malformed locked id", zap.String("value", raw))
			continue
		}
		fresh[id] = struct{}{}
	}

	m.mu.Lock()
	m.locked = fresh
	m.mu.Unlock()
	return nil
}

// IsLocked читает только L1.
func (m *LockRegistry) IsLocked(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locked[userID]
	return ok
}

// SetLocked обновляет L1, множество в Redis и оповещает остальные инстансы.
func (m *LockRegistry) SetLocked(ctx context.Context, userID int64, locked bool) error {
	m.apply(userID, locked)

	member := strconv.FormatInt(userID, 10)
	pipe := m.rdb.TxPipeline()
	if locked {
		pipe.SAdd(ctx, infra.RedisKeyLockedUsers, member)
	} else {
		pipe.SRem(ctx, infra.RedisKeyLockedUsers, member)
	}
	pipe.Publish(ctx, infra.RedisChanLockSignals, member+":"+strconv.FormatBool(locked))
	_, err := pipe.Exec(ctx)
	return err
}

func (m *LockRegistry) apply(userID int64, locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if locked {
		m.locked[userID] = struct{}{}
	} else {
		delete(m.locked, userID)
	}
}

// Listen подписывается на сигналы и живёт до отмены ctx.
func (m *LockRegistry) Listen(ctx context.Context) {
	listenResilient(ctx, m.rdb, m.logger, infra.RedisChanLockSignals,
		func() error { return m.Init(ctx) },
		func(id string, locked bool) {
			userID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				m.logger.Warn("invalid lock signal id", zap.String("id", id))
				return
			}
			m.apply(userID, locked)
		},
	)
}

// listenResilient держит "живучую" подписку на канал Redis: переподключается,
// при каждом подключении синхронизирует состояние и разбирает сигналы "id:bool".
func listenResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onReconnect func() error,
	onMessage func(id string, status bool),
) {
	for ctx.Err() == nil {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		// Синхронизация при каждом успешном подключении
		if err := onReconnect(); err != nil {
			logger.Error("sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				id, status, found := strings.Cut(msg.Payload, ":")
				if !found {
					logger.Error("invalid signal format", zap.String("payload", msg.Payload))
					continue
				}
				onMessage(id, status == "true" || status == "on")
			}
		}

		pubsub.Close()
		sleepCtx(ctx, time.Second)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
