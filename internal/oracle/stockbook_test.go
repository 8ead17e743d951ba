package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestStockBook_ReserveIsAllOrNothing(t *testing.T) {
	book := NewStockBook()
	book.Set("p-1", 5, decimal.NewFromInt(2))

	if err := book.ReserveQuantity(context.Background(), "p-1", 6); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := book.Quantity("p-1"); got != 5 {
		t.Fatalf("quantity changed on failed reserve: %d", got)
	}
	if err := book.ReserveQuantity(context.Background(), "p-1", 5); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := book.Quantity("p-1"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestStockBook_ConcurrentReserveNeverOversells(t *testing.T) {
	book := NewStockBook()
	book.Set("p-1", 10, decimal.NewFromInt(1))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := book.ReserveQuantity(context.Background(), "p-1", 1); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 10 || book.Quantity("p-1") != 0 {
		t.Fatalf("expected 10 reservations and empty stock, got %d and %d", success, book.Quantity("p-1"))
	}
}

func TestStockBook_ApplyQuantityChange(t *testing.T) {
	book := NewStockBook()
	book.Set("p-1", 3, decimal.Zero)

	got, err := book.ApplyQuantityChange(domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: -5})
	if err != nil || got != 0 {
		t.Fatalf("expected floor at zero, got %d err=%v", got, err)
	}
	got, err = book.ApplyQuantityChange(domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: 4})
	if err != nil || got != 4 {
		t.Fatalf("expected 4, got %d err=%v", got, err)
	}
	if _, err := book.ApplyQuantityChange(domain.ProductQuantityUpdated{ProductID: "nope", QuantityChange: 1}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStockBook_FailWithAndCalls(t *testing.T) {
	book := NewStockBook()
	book.Set("p-1", 1, decimal.Zero)
	book.FailWith(domain.ErrOracleUnavailable)

	if _, err := book.CheckQuantity(context.Background(), "p-1"); !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if book.Calls("CheckQuantity") != 1 {
		t.Fatalf("expected one call, got %d", book.Calls("CheckQuantity"))
	}
}
