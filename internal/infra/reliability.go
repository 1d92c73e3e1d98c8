package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrPermanent помечает ошибки, которые бессмысленно повторять (нет строки, дубликат и т.п.).
var ErrPermanent = errors.New("permanent failure")

// Permanent оборачивает ошибку так, что Guard не повторяет вызов и не считает его отказом хранилища.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// StateObserver получает смену состояния предохранителя (0 - closed, 1 - open, 0.5 - half-open).
type StateObserver interface {
	SetBreakerState(name string, value float64)
}

// Guard объединяет Circuit Breaker и ретраи для одного внешнего ресурса.
type Guard struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

func NewGuard(name string, cfg ResilienceConfig, observer StateObserver, logger *zap.Logger) *Guard {
	threshold := cfg.CBFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	g := &Guard{
		name:     name,
		attempts: attempts,
		delay:    cfg.RetryDelay,
		logger:   logger.Named("guard").With(zap.String("resource", name)),
	}

	// Настройка предохранителя
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
			if observer != nil {
				observer.SetBreakerState(name, stateValue(to))
			}
		},
	})
	return g
}

// Do выполняет fn под защитой предохранителя с экспоненциальными ретраями.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(g.attempts),
			retry.Delay(g.delay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, ErrPermanent) &&
					!errors.Is(err, context.Canceled) &&
					!errors.Is(err, context.DeadlineExceeded)
			}),
		)
		return nil, r.Do(func() error { return fn(ctx) })
	})
	return err
}

// Execute: типизированный вариант Do.
func Execute[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (g *Guard) State() gobreaker.State { return g.cb.State() }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	}
	return 0
}
