package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type stockEntry struct {
	quantity int32
	price    decimal.Decimal
}

// StockBook: in-memory владелец склада: остатки и цены по товарам.
// Используется сервером cmd/inventory-oracle и как конфигурируемая заглушка в тестах.
type StockBook struct {
	mu      sync.Mutex
	entries map[string]stockEntry
	failErr error
	latency time.Duration
	calls   map[string]int
}

// NewStockBook возвращает пустой склад.
func NewStockBook() *StockBook {
	return &StockBook{
		entries: make(map[string]stockEntry),
		calls:   make(map[string]int),
	}
}

// Set задаёт остаток и цену товара.
func (b *StockBook) Set(productID string, quantity int32, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[productID] = stockEntry{quantity: quantity, price: price}
}

// FailWith заставляет все последующие вызовы возвращать err; nil возвращает нормальную работу.
func (b *StockBook) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
}

// SetLatency задаёт задержку ответа; вызов прерывается по контексту.
func (b *StockBook) SetLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = d
}

// Quantity возвращает текущий остаток (0 для неизвестного товара).
func (b *StockBook) Quantity(productID string) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[productID].quantity
}

// Calls возвращает число вызовов метода.
func (b *StockBook) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// CheckQuantity возвращает остаток товара.
func (b *StockBook) CheckQuantity(ctx context.Context, productID string) (int32, error) {
	entry, err := b.lookup(ctx, "CheckQuantity", productID)
	if err != nil {
		return 0, err
	}
	return entry.quantity, nil
}

// CheckPrice возвращает цену товара.
func (b *StockBook) CheckPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	entry, err := b.lookup(ctx, "CheckPrice", productID)
	if err != nil {
		return decimal.Zero, err
	}
	return entry.price, nil
}

// ReserveQuantity списывает qty целиком или ничего.
func (b *StockBook) ReserveQuantity(ctx context.Context, productID string, qty int32) error {
	_, err := b.Reserve(ctx, productID, qty)
	return err
}

// Reserve списывает qty и возвращает новый остаток.
func (b *StockBook) Reserve(ctx context.Context, productID string, qty int32) (int32, error) {
	if qty <= 0 {
		return 0, domain.ErrItemQtyInvalid
	}
	if err := b.enter(ctx, "ReserveQuantity"); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if entry.quantity < qty {
		return entry.quantity, domain.NewInsufficientStockError(productID, qty, entry.quantity)
	}
	entry.quantity -= qty
	b.entries[productID] = entry
	return entry.quantity, nil
}

// ReleaseQuantity возвращает qty на склад.
func (b *StockBook) ReleaseQuantity(ctx context.Context, productID string, qty int32) error {
	_, err := b.Release(ctx, productID, qty)
	return err
}

// Release возвращает qty на склад и возвращает новый остаток.
func (b *StockBook) Release(ctx context.Context, productID string, qty int32) (int32, error) {
	if qty <= 0 {
		return 0, domain.ErrItemQtyInvalid
	}
	if err := b.enter(ctx, "ReleaseQuantity"); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	entry.quantity += qty
	b.entries[productID] = entry
	return entry.quantity, nil
}

// ApplyQuantityChange применяет событие ProductQuantityUpdated. Остаток не уходит ниже нуля.
func (b *StockBook) ApplyQuantityChange(event domain.ProductQuantityUpdated) (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[event.ProductID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, event.ProductID)
	}
	entry.quantity += event.QuantityChange
	if entry.quantity < 0 {
		entry.quantity = 0
	}
	b.entries[event.ProductID] = entry
	return entry.quantity, nil
}

func (b *StockBook) lookup(ctx context.Context, method, productID string) (stockEntry, error) {
	if err := b.enter(ctx, method); err != nil {
		return stockEntry{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[productID]
	if !ok {
		return stockEntry{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return entry, nil
}

func (b *StockBook) enter(ctx context.Context, method string) error {
	b.mu.Lock()
	b.calls[method]++
	failErr, latency := b.failErr, b.latency
	b.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return failErr
}

var (
	_ domain.StockOracle   = (*StockBook)(nil)
	_ domain.PriceOracle   = (*StockBook)(nil)
	_ domain.StockReserver = (*StockBook)(nil)
)
