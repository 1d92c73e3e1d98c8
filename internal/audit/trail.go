package audit

/*
Trail: асинхронный журнал аудита входов и операций с учётными записями.

- Non-blocking Logging: Log не ждёт БД, событие уходит в буферизированный канал.
- Batching: события копятся и пишутся пачкой по таймеру или при достижении размера пачки.
- Drain Pattern: Stop закрывает канал, воркер вычитывает остаток и делает финальный flush.
- Integrity: каждое событие подписывается HMAC до постановки в очередь.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Storage определяет, куда физически будут сохраняться события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuditEvent) error
}

// Auditor: то, что видят сервисы.
type Auditor interface {
	Log(event AuditEvent)
}

// Observer получает заполненность буфера и факты потери событий.
type Observer interface {
	AuditBuffer(n int)
	AuditDrop()
}

type nopObserver struct{}

func (nopObserver) AuditBuffer(int) {}
func (nopObserver) AuditDrop()      {}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Observer      Observer
}

type Trail struct {
	ch        chan AuditEvent // Буфер для асинхронности
	repo      Storage
	signer    *Signer
	observer  Observer
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	now       func() time.Time

	mu     sync.RWMutex // Log держит RLock на время отправки, Stop берёт Lock перед close
	closed bool
	wg     sync.WaitGroup
}

func NewTrail(repo Storage, signer *Signer, opts Options, logger *zap.Logger) *Trail {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Trail{
		ch:        make(chan AuditEvent, opts.BufferSize),
		repo:      repo,
		signer:    signer,
		observer:  opts.Observer,
		logger:    logger.With(zap.String("mod", "audit")),
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
		now:       time.Now,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event AuditEvent) {
	t.prepare(&event)

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.observer.AuditDrop()
		t.logger.Warn("audit event dropped: trail is stopping",
			zap.String("id", event.ID), zap.String("operation", string(event.Operation)))
		return
	}

	// используем стратегию Load Shedding (сброс нагрузки)
	select {
	case t.ch <- event:
		t.observer.AuditBuffer(len(t.ch))
	default:
		// Канал переполнен: событие хотя бы остаётся в логе приложения
		t.observer.AuditDrop()
		t.logger.Error("audit_buffer_overflow",
			zap.String("operation", string(event.Operation)),
			zap.String("username", event.Username),
			zap.String("client_ip", event.ClientIP),
		)
	}
}

func (t *Trail) prepare(e *AuditEvent) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	// Убеждаемся, что таймстемп всегда проставлен
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now()
	}
	if e.Module == "" {
		e.Module = ModuleAuth
	}
	if e.RiskLevel == "" {
		e.RiskLevel = DefaultRisk(e.Operation)
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if t.signer != nil {
		e.Signature = t.signer.Sign(e)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]AuditEvent, 0, t.batchSize)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Используем Background, так как основной контекст может быть уже закрыт
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.repo.WriteBatch(ctx, batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		t.observer.AuditBuffer(len(t.ch))
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): всё, что было в очереди, уже вычитано
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
