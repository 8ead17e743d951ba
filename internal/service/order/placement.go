package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

// Шаги саги (значение метки step).
const (
	StepCheckStock = "check_stock"
	StepCheckPrice = "check_price"
	StepReserve    = "reserve"
	StepPersist    = "persist"
	StepRelease    = "release"
)

// CreateOrder оформляет заказ.
//
// В режиме check остаток проверяется по каждой позиции, затем снимается цена, и заказ
// записывается одной транзакцией вместе с событиями ProductQuantityUpdated(-qty) и
// ClearUserCart. В режиме reserve остаток списывается атомарно через ReserveQuantity,
// отрицательные события не пишутся, а при любой последующей ошибке резерв возвращается.
// Любая ошибка до записи означает, что ни заказ, ни события не сохранены.
func (s *Service) CreateOrder(ctx context.Context, userID, shippingAddress string, lines []domain.LineRequest) (result domain.Order, err error) {
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if err := domain.ValidateLines(lines); err != nil {
		return domain.Order{}, err
	}

	ctx, span := s.startSpan(ctx, "order.create",
		attribute.String("user_id", userID),
		attribute.String("reservation_mode", string(s.mode)),
		attribute.Int("lines", len(lines)),
	)
	s.metrics.PlacementStarted()
	defer func() {
		s.metrics.PlacementFinished()
		s.metrics.RecordOrderPlacement(string(s.mode), placementResult(err))
		endSpan(span, err)
	}()

	if s.mode == domain.ReservationModeReserve {
		return s.createReserved(ctx, userID, shippingAddress, lines)
	}
	return s.createChecked(ctx, userID, shippingAddress, lines)
}

func (s *Service) createChecked(ctx context.Context, userID, shippingAddress string, lines []domain.LineRequest) (domain.Order, error) {
	if err := s.checkStock(ctx, lines); err != nil {
		return domain.Order{}, err
	}
	items, err := s.snapshotPrices(ctx, lines)
	if err != nil {
		return domain.Order{}, err
	}

	order := s.newOrder(userID, shippingAddress, items)
	events := make([]domain.Event, 0, len(items)+1)
	for _, item := range items {
		events = append(events, domain.ProductQuantityUpdated{ProductID: item.ProductID, QuantityChange: -item.Quantity})
	}
	events = append(events, domain.ClearUserCart{UserID: userID})

	return s.persist(ctx, order, events)
}

func (s *Service) createReserved(ctx context.Context, userID, shippingAddress string, lines []domain.LineRequest) (domain.Order, error) {
	// Цены читаются до резерва: эта часть не имеет побочных эффектов.
	items, err := s.snapshotPrices(ctx, lines)
	if err != nil {
		return domain.Order{}, err
	}

	reserved, err := s.reserve(ctx, items)
	if err != nil {
		s.release(ctx, reserved)
		return domain.Order{}, err
	}

	order := s.newOrder(userID, shippingAddress, items)
	created, err := s.persist(ctx, order, []domain.Event{domain.ClearUserCart{UserID: userID}})
	if err != nil {
		s.release(ctx, reserved)
		return domain.Order{}, err
	}
	return created, nil
}

func (s *Service) checkStock(ctx context.Context, lines []domain.LineRequest) (err error) {
	ctx, span := s.startSpan(ctx, "order."+StepCheckStock)
	defer s.observeStep(StepCheckStock, time.Now())
	defer func() { endSpan(span, err) }()

	for _, line := range lines {
		available, err := s.stock.CheckQuantity(ctx, line.ProductID)
		if err != nil {
			return fmt.Errorf("check quantity %s: %w", line.ProductID, err)
		}
		if line.Quantity > available {
			return domain.NewInsufficientStockError(line.ProductID, line.Quantity, available)
		}
	}
	return nil
}

func (s *Service) snapshotPrices(ctx context.Context, lines []domain.LineRequest) (items []domain.OrderItem, err error) {
	ctx, span := s.startSpan(ctx, "order."+StepCheckPrice)
	defer s.observeStep(StepCheckPrice, time.Now())
	defer func() { endSpan(span, err) }()

	items = make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		price, err := s.prices.CheckPrice(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("check price %s: %w", line.ProductID, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("%w: %s for %s", domain.ErrItemPriceInvalid, price, line.ProductID)
		}
		items = append(items, domain.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: price})
	}
	return items, nil
}

func (s *Service) reserve(ctx context.Context, items []domain.OrderItem) (reserved domain.Reservations, err error) {
	ctx, span := s.startSpan(ctx, "order."+StepReserve)
	defer s.observeStep(StepReserve, time.Now())
	defer func() { endSpan(span, err) }()

	for _, item := range items {
		if err := s.reserver.ReserveQuantity(ctx, item.ProductID, item.Quantity); err != nil {
			return reserved, fmt.Errorf("reserve %s: %w", item.ProductID, err)
		}
		reserved.Add(item.ProductID, item.Quantity)
	}
	return reserved, nil
}

// release возвращает резерв в обратном порядке. Контекст вызывающего может быть уже
// отменён, поэтому используется отдельный ограниченный по времени контекст.
func (s *Service) release(ctx context.Context, reserved domain.Reservations) {
	if len(reserved) == 0 {
		return
	}
	defer s.observeStep(StepRelease, time.Now())

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
	defer cancel()

	for _, r := range reserved.Reverse() {
		if err := s.reserver.ReleaseQuantity(releaseCtx, r.ProductID, r.Qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"product_id": r.ProductID,
				"quantity":   r.Qty,
			}).Error("Failed to release reserved stock")
			continue
		}
		s.metrics.RecordCompensationEvents(1)
	}
}

func (s *Service) newOrder(userID, shippingAddress string, items []domain.OrderItem) domain.Order {
	now := s.now()
	return domain.Order{
		ID:              s.newID(),
		UserID:          userID,
		ShippingAddress: shippingAddress,
		Status:          domain.OrderStatusPending,
		TotalPrice:      domain.ComputeTotal(items),
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// persist записывает заказ и события одной транзакцией.
func (s *Service) persist(ctx context.Context, order domain.Order, events []domain.Event) (domain.Order, error) {
	defer s.observeStep(StepPersist, time.Now())

	msgs, err := domain.NewOutboxMessages(order.CreatedAt, events...)
	if err != nil {
		return domain.Order{}, err
	}
	tracing.StampOutbox(ctx, msgs)
	if err := s.orders.Create(ctx, order, msgs); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	order.Version = 1

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalPrice.String(),
		"items":    len(order.Items),
		"mode":     string(s.mode),
	}).Info("Order created")
	return order, nil
}

func (s *Service) observeStep(step string, started time.Time) {
	s.metrics.ObserveSagaStep(step, time.Since(started))
}

func placementResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case isRejection(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrInsufficientStock,
		domain.ErrProductNotFound,
		domain.ErrItemPriceInvalid,
		domain.ErrItemQtyInvalid,
		domain.ErrItemsRequired,
		domain.ErrDuplicateOrderItem,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
