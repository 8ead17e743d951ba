// Package cart реализует протокол изменения корзины: проверка остатка перед увеличением
// количества, одна запись и не более одного события на вызов.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

// DefaultMaxAttempts: сколько раз повторяется чтение-проверка-запись при конфликте версий.
const DefaultMaxAttempts = 3

// Операции корзины (значение метки op).
const (
	OpAddItem        = "add_item"
	OpRemoveItem     = "remove_item"
	OpClear          = "clear"
	OpChangeQuantity = "change_quantity"
)

// Service управляет корзинами пользователей.
type Service struct {
	carts       domain.CartRepository
	stock       domain.StockOracle
	metrics     *metrics.StorefrontMetrics
	logger      *log.Entry
	tracer      trace.Tracer
	locks       *userLocks
	maxAttempts int
	now         func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxAttempts задаёт число попыток при конфликте версий; значения < 1 игнорируются.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithClock подменяет источник времени событий.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис корзин.
func NewService(carts domain.CartRepository, stock domain.StockOracle, opts ...Option) *Service {
	s := &Service{
		carts:       carts,
		stock:       stock,
		logger:      log.WithField("component", "cart-service"),
		tracer:      otel.Tracer("github.com/vladislavdragonenkov/storefront/internal/service/cart"),
		locks:       newUserLocks(),
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCart возвращает корзину пользователя; отсутствующая корзина возвращается пустой.
func (s *Service) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}
	cart, err := s.carts.Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart %s: %w", userID, err)
	}
	return cart, nil
}

// AddItem добавляет qty единиц товара, если итоговое количество не превышает остаток.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int32) (domain.Cart, error) {
	if err := validateLine(userID, productID); err != nil {
		return domain.Cart{}, err
	}
	if qty <= 0 {
		return domain.Cart{}, domain.ErrItemQtyInvalid
	}

	return s.mutate(ctx, OpAddItem, userID, productID, func(ctx context.Context, cart *domain.Cart) (domain.Event, error) {
		total := int64(qty)
		if existing, ok := cart.Item(productID); ok {
			total += int64(existing.Quantity)
		}
		if total > int64(maxQuantity) {
			return nil, domain.ErrItemQtyInvalid
		}
		requested := int32(total)
		if err := s.ensureAvailable(ctx, productID, requested); err != nil {
			return nil, err
		}
		cart.SetQuantity(productID, requested)
		return domain.CartItemAdded{UserID: userID, ProductID: productID, Quantity: qty, At: s.now()}, nil
	})
}

// RemoveItem удаляет позицию. Отсутствие корзины или позиции: не ошибка.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if err := validateLine(userID, productID); err != nil {
		return domain.Cart{}, err
	}

	return s.mutate(ctx, OpRemoveItem, userID, productID, func(_ context.Context, cart *domain.Cart) (domain.Event, error) {
		if !cart.Persisted() || !cart.Remove(productID) {
			return nil, nil
		}
		return domain.CartItemRemoved{UserID: userID, ProductID: productID, At: s.now()}, nil
	})
}

// Clear очищает корзину. Пустая или отсутствующая корзина не изменяется.
func (s *Service) Clear(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	return s.mutate(ctx, OpClear, userID, "", func(_ context.Context, cart *domain.Cart) (domain.Event, error) {
		if !cart.Persisted() || cart.Empty() {
			return nil, nil
		}
		cart.Clear()
		return domain.CartItemsCleared{UserID: userID, At: s.now()}, nil
	})
}

// ChangeQuantity меняет количество на delta. Результат <= 0 удаляет позицию.
// Остаток проверяется только при увеличении.
func (s *Service) ChangeQuantity(ctx context.Context, userID, productID string, delta int32) (domain.Cart, error) {
	if err := validateLine(userID, productID); err != nil {
		return domain.Cart{}, err
	}
	if delta == 0 {
		s.metrics.RecordCartMutation(OpChangeQuantity, metrics.ResultNoop)
		return s.GetCart(ctx, userID)
	}

	return s.mutate(ctx, OpChangeQuantity, userID, productID, func(ctx context.Context, cart *domain.Cart) (domain.Event, error) {
		if !cart.Persisted() {
			return nil, nil
		}
		item, ok := cart.Item(productID)
		if !ok {
			return nil, nil
		}

		newQty := int64(item.Quantity) + int64(delta)
		if newQty <= 0 {
			cart.Remove(productID)
			return domain.CartItemRemoved{UserID: userID, ProductID: productID, At: s.now()}, nil
		}
		if newQty > int64(maxQuantity) {
			return nil, domain.ErrItemQtyInvalid
		}
		if delta > 0 {
			if err := s.ensureAvailable(ctx, productID, int32(newQty)); err != nil {
				return nil, err
			}
		}
		cart.SetQuantity(productID, int32(newQty))
		return domain.CartItemQuantityChanged{UserID: userID, ProductID: productID, NewQuantity: int32(newQty), At: s.now()}, nil
	})
}

// HandleClearUserCart обрабатывает событие ClearUserCart после оформления заказа.
// Повторная доставка безопасна: очистка пустой корзины ничего не делает.
func (s *Service) HandleClearUserCart(ctx context.Context, event domain.ClearUserCart) error {
	if _, err := s.Clear(ctx, event.UserID); err != nil {
		return fmt.Errorf("clear cart for %s: %w", event.UserID, err)
	}
	return nil
}

const maxQuantity = int32(1<<31 - 1)

type mutation func(ctx context.Context, cart *domain.Cart) (domain.Event, error)

// mutate выполняет чтение-изменение-запись под блокировкой пользователя.
// Конфликт версии повторяет весь цикл, включая проверку остатка.
func (s *Service) mutate(ctx context.Context, op, userID, productID string, fn mutation) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("product_id", productID),
	))
	defer span.End()

	cart, result, err := s.mutateLocked(ctx, op, userID, fn)
	s.metrics.RecordCartMutation(op, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return domain.Cart{}, err
	}
	span.SetAttributes(attribute.String("result", result))
	return cart, nil
}

func (s *Service) mutateLocked(ctx context.Context, op, userID string, fn mutation) (domain.Cart, string, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return domain.Cart{}, metrics.ResultError, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		current, err := s.GetCart(ctx, userID)
		if err != nil {
			return domain.Cart{}, metrics.ResultError, err
		}

		next := current.Clone()
		event, err := fn(ctx, &next)
		if err != nil {
			return domain.Cart{}, resultFor(err), err
		}
		if event == nil {
			return current, metrics.ResultNoop, nil
		}

		msgs, err := domain.NewOutboxMessages(s.now(), event)
		if err != nil {
			return domain.Cart{}, metrics.ResultError, err
		}
		tracing.StampOutbox(ctx, msgs)

		err = s.carts.Save(ctx, next, msgs)
		if err == nil {
			now := s.now()
			if !next.Persisted() {
				next.CreatedAt = now
			}
			next.UpdatedAt = now
			next.Version++
			s.logger.WithFields(log.Fields{
				"user_id": userID,
				"op":      op,
				"event":   event.Kind(),
				"version": next.Version,
			}).Debug("Cart mutated")
			return next, metrics.ResultOK, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.Cart{}, metrics.ResultError, fmt.Errorf("save cart %s: %w", userID, err)
		}
		if attempt >= s.maxAttempts {
			return domain.Cart{}, metrics.ResultConflict, err
		}
		s.logger.WithFields(log.Fields{
			"user_id": userID,
			"op":      op,
			"attempt": attempt,
		}).Warn("Cart version conflict detected, retrying")
	}
}

func (s *Service) ensureAvailable(ctx context.Context, productID string, requested int32) error {
	available, err := s.stock.CheckQuantity(ctx, productID)
	if err != nil {
		return fmt.Errorf("check quantity %s: %w", productID, err)
	}
	if requested > available {
		return domain.NewInsufficientStockError(productID, requested, available)
	}
	return nil
}

func validateLine(userID, productID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if productID == "" {
		return domain.ErrProductRequired
	}
	return nil
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrItemQtyInvalid):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
