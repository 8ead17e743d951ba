package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newIntegrationOrder(userID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
		{ProductID: "p-2", Quantity: 1, UnitPrice: decimal.RequireFromString("3.25")},
	}
	return domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		ShippingAddress: "Main st. 1",
		Status:          domain.OrderStatusPending,
		TotalPrice:      domain.ComputeTotal(items),
		Items:           items,
		CreatedAt:       createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt:       createdAt.UTC().Truncate(time.Microsecond),
	}
}

func TestOrderRepository_PostgresCreateGetWithOutbox(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	outbox := NewOutboxRepository(store)
	ctx := context.Background()

	order := newIntegrationOrder("user-1", time.Now())
	msgs, err := domain.NewOutboxMessages(time.Now(),
		domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: -2},
		domain.ProductQuantityUpdated{ProductID: "p-2", QuantityChange: -1},
		domain.ClearUserCart{UserID: "user-1"},
	)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, order, msgs))

	stored, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Version)
	require.Len(t, stored.Items, 2)
	require.Equal(t, "p-1", stored.Items[0].ProductID)
	require.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("24.25")), "total %s", stored.TotalPrice)
	require.Empty(t, stored.ValidateInvariants())

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, domain.EventProductQuantityUpdated, pending[0].EventType)
	require.Equal(t, domain.EventClearUserCart, pending[2].EventType)

	err = repo.Create(ctx, order, nil)
	require.True(t, errors.Is(err, domain.ErrOrderAlreadyExists), "unexpected error %v", err)
}

func TestOrderRepository_PostgresSaveDeleteAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	base := time.Now()
	older := newIntegrationOrder("user-2", base.Add(-time.Hour))
	newer := newIntegrationOrder("user-2", base)
	require.NoError(t, repo.Create(ctx, older, nil))
	require.NoError(t, repo.Create(ctx, newer, nil))

	list, err := repo.ListByUser(ctx, "user-2", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)

	limited, err := repo.ListByUser(ctx, "user-2", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	stored, err := repo.Get(ctx, older.ID)
	require.NoError(t, err)
	stored.Status = domain.OrderStatusDelivered
	stored.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Save(ctx, stored, nil))

	err = repo.Save(ctx, stored, nil)
	require.True(t, errors.Is(err, domain.ErrOrderVersionConflict), "unexpected error %v", err)

	reloaded, err := repo.Get(ctx, older.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, reloaded.Status)
	require.Equal(t, int64(2), reloaded.Version)

	require.NoError(t, repo.Delete(ctx, reloaded, nil))
	_, err = repo.Get(ctx, older.ID)
	require.True(t, errors.Is(err, domain.ErrOrderNotFound))

	err = repo.Delete(ctx, reloaded, nil)
	require.True(t, errors.Is(err, domain.ErrOrderNotFound), "unexpected error %v", err)
}

func TestOrderRepository_PostgresUnknownID(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	_, err := repo.Get(context.Background(), "not-a-uuid")
	require.True(t, errors.Is(err, domain.ErrOrderNotFound), "unexpected error %v", err)
}
