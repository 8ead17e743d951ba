package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestOutboxRepository_PullPendingKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()

	msgs := mustMessages(t,
		domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: -1},
		domain.ProductQuantityUpdated{ProductID: "p-2", QuantityChange: -2},
		domain.ClearUserCart{UserID: "u-1"},
	)
	if err := repo.Enqueue(ctx, msgs...); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 2)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != msgs[0].ID || pending[1].ID != msgs[1].ID {
		t.Fatalf("unexpected pending order %+v", pending)
	}

	if err := repo.MarkSent(ctx, msgs[0].ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, msgs[1].ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if status, _ := repo.Status(msgs[1].ID); status != domain.OutboxStatusFailed {
		t.Fatalf("expected failed status, got %q", status)
	}
}

func TestOutboxRepository_MarkUnknown(t *testing.T) {
	repo := memory.NewOutboxRepository()
	if err := repo.MarkSent(context.Background(), "missing"); !errors.Is(err, domain.ErrOutboxMessageNotFound) {
		t.Fatalf("expected ErrOutboxMessageNotFound, got %v", err)
	}
}

func TestOutboxRepository_AssignsMissingID(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	if err := repo.Enqueue(ctx, domain.OutboxMessage{EventType: domain.EventClearUserCart, Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	all := repo.All()
	if len(all) != 1 || all[0].ID == "" {
		t.Fatalf("expected generated id, got %+v", all)
	}
}
