package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store держит корзины, заказы и outbox под одной блокировкой,
// поэтому запись агрегата и его событий атомарна так же, как транзакция в PostgreSQL.
type Store struct {
	mu     sync.RWMutex
	carts  map[string]domain.Cart
	orders map[string]domain.Order
	outbox map[string]*outboxRecord
	seq    int64
	now    func() time.Time
}

// NewStore создаёт пустое in-memory хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		carts:  make(map[string]domain.Cart),
		orders: make(map[string]domain.Order),
		outbox: make(map[string]*outboxRecord),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Carts возвращает репозиторий корзин поверх хранилища.
func (s *Store) Carts() domain.CartRepository {
	return &cartRepositoryInMemory{store: s}
}

// Orders возвращает репозиторий заказов поверх хранилища.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepositoryInMemory{store: s}
}

// Outbox возвращает репозиторий outbox поверх хранилища.
func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{store: s}
}

// enqueueLocked добавляет сообщения в outbox; вызывающий держит s.mu.
func (s *Store) enqueueLocked(msgs []domain.OutboxMessage) {
	now := s.now()
	for _, msg := range msgs {
		s.seq++
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		s.outbox[msg.ID] = &outboxRecord{
			msg:       cloneOutboxMessage(msg),
			seq:       s.seq,
			status:    domain.OutboxStatusPending,
			updatedAt: now,
		}
	}
}

// pendingLocked возвращает pending-записи в порядке вставки.
func (s *Store) pendingLocked() []*outboxRecord {
	result := make([]*outboxRecord, 0, len(s.outbox))
	for _, rec := range s.outbox {
		if rec.status == domain.OutboxStatusPending {
			result = append(result, rec)
		}
	}
	sortBySeq(result)
	return result
}

func sortBySeq(records []*outboxRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
}
