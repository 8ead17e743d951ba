package memory

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory: in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	store *Store
}

// NewCartRepository возвращает репозиторий корзин с собственным хранилищем.
func NewCartRepository() domain.CartRepository {
	return NewStore().Carts()
}

func (r *cartRepositoryInMemory) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cart, ok := r.store.carts[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

// Save перезаписывает корзину, проверяя версию (optimistic locking), и кладёт события в outbox.
func (r *cartRepositoryInMemory) Save(ctx context.Context, cart domain.Cart, events []domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, exists := r.store.carts[cart.UserID]
	switch {
	case cart.Version == 0 && exists:
		return domain.ErrCartVersionConflict
	case cart.Version != 0 && !exists:
		return domain.ErrCartVersionConflict
	case exists && current.Version != cart.Version:
		return domain.ErrCartVersionConflict
	}

	now := r.store.now()
	if !exists {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Version++
	r.store.carts[cart.UserID] = cart.Clone()
	r.store.enqueueLocked(events)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
