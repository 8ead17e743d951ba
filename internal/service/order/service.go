// Package order реализует сагу оформления заказа, смену статусов и удаление с компенсацией.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// DefaultListLimit: размер страницы ListOrders по умолчанию.
	DefaultListLimit = 50
	// MaxListLimit: верхняя граница размера страницы.
	MaxListLimit = 500

	maxSaveRetries = 3
	baseRetryDelay = 10 * time.Millisecond

	defaultReleaseTimeout = 5 * time.Second
)

// Service: сервис заказов.
type Service struct {
	orders   domain.OrderRepository
	stock    domain.StockOracle
	prices   domain.PriceOracle
	reserver domain.StockReserver

	mode           domain.ReservationMode
	policy         domain.TransitionPolicy
	releaseTimeout time.Duration

	metrics *metrics.StorefrontMetrics
	logger  *log.Entry
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithReservation включает режим резерва. Для ReservationModeReserve нужен reserver.
func WithReservation(mode domain.ReservationMode, reserver domain.StockReserver) Option {
	return func(s *Service) {
		s.mode = mode
		s.reserver = reserver
	}
}

// WithTransitionPolicy задаёт политику смены статусов.
func WithTransitionPolicy(policy domain.TransitionPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithReleaseTimeout ограничивает время компенсирующего ReleaseQuantity.
func WithReleaseTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.releaseTimeout = d
		}
	}
}

func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, stock domain.StockOracle, prices domain.PriceOracle, opts ...Option) (*Service, error) {
	s := &Service{
		orders:         orders,
		stock:          stock,
		prices:         prices,
		mode:           domain.ReservationModeCheck,
		policy:         domain.TransitionPolicyPermissive,
		releaseTimeout: defaultReleaseTimeout,
		logger:         log.WithField("component", "order-service"),
		tracer:         otel.Tracer("github.com/vladislavdragonenkov/storefront/internal/service/order"),
		now:            func() time.Time { return time.Now().UTC() },
		newID:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	switch s.mode {
	case domain.ReservationModeCheck:
	case domain.ReservationModeReserve:
		if s.reserver == nil {
			return nil, errors.New("reserve mode requires a stock reserver")
		}
	default:
		return nil, fmt.Errorf("unknown reservation mode %q", s.mode)
	}
	if s.policy != domain.TransitionPolicyPermissive && s.policy != domain.TransitionPolicyStrict {
		return nil, fmt.Errorf("unknown status transition policy %q", s.policy)
	}
	return s, nil
}

// Mode возвращает режим резерва.
func (s *Service) Mode() domain.ReservationMode {
	return s.mode
}

// GetOrder возвращает заказ.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	return s.orders.Get(ctx, orderID)
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Service) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.orders.ListByUser(ctx, userID, limit)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

// retryOnConflict повторяет fn при конфликте версий с экспоненциальной паузой.
func (s *Service) retryOnConflict(ctx context.Context, orderID string, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		err = fn()
		if err == nil || !domain.IsVersionConflict(err) {
			return err
		}
		if attempt == maxSaveRetries-1 {
			break
		}
		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt + 1,
		}).Warn("Order version conflict detected, retrying")

		delay := baseRetryDelay * time.Duration(1<<uint(attempt))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
