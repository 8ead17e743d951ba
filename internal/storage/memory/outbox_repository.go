package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        int64
	status     domain.OutboxStatus
	attemptCnt int
	updatedAt  time.Time
}

// OutboxRepository: in-memory хранилище для transactional outbox.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository создаёт in-memory реализацию outbox с собственным хранилищем.
func NewOutboxRepository() *OutboxRepository {
	return NewStore().Outbox()
}

// Enqueue сохраняет события со статусом `pending`.
func (r *OutboxRepository) Enqueue(ctx context.Context, msgs ...domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = uuid.NewString()
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.enqueueLocked(msgs)
	return nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке вставки.
func (r *OutboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	pending := r.store.pendingLocked()
	if len(pending) > limit {
		pending = pending[:limit]
	}
	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, cloneOutboxMessage(rec.msg))
	}
	return result, nil
}

// Stats возвращает размер backlog и возраст самого старого сообщения.
func (r *OutboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxStats{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	pending := r.store.pendingLocked()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].msg.CreatedAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, domain.OutboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, domain.OutboxStatusFailed)
}

func (r *OutboxRepository) mark(ctx context.Context, id string, status domain.OutboxStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.outbox[id]
	if !ok {
		return domain.ErrOutboxMessageNotFound
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = r.store.now()
	return nil
}

// All возвращает копию всех сообщений в порядке вставки (используется в тестах).
func (r *OutboxRepository) All() []domain.OutboxMessage {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]*outboxRecord, 0, len(r.store.outbox))
	for _, rec := range r.store.outbox {
		records = append(records, rec)
	}
	sortBySeq(records)
	result := make([]domain.OutboxMessage, 0, len(records))
	for _, rec := range records {
		result = append(result, cloneOutboxMessage(rec.msg))
	}
	return result
}

// Status возвращает статус сообщения (используется в тестах).
func (r *OutboxRepository) Status(id string) (domain.OutboxStatus, bool) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.outbox[id]
	if !ok {
		return "", false
	}
	return rec.status, true
}

func cloneOutboxMessage(src domain.OutboxMessage) domain.OutboxMessage {
	dst := src
	dst.Payload = append([]byte(nil), src.Payload...)
	if src.Headers != nil {
		dst.Headers = make(map[string]string, len(src.Headers))
		for k, v := range src.Headers {
			dst.Headers[k] = v
		}
	}
	return dst
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
