package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/api/inventoryv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/transport/grpcjson"
)

const (
	// DefaultTimeout: таймаут одного вызова склада, если не задан явно.
	DefaultTimeout = 3 * time.Second

	tracerName = "github.com/vladislavdragonenkov/storefront/internal/oracle"
)

// Client: gRPC-клиент склада: остаток, цена, атомарный резерв.
// Каждый вызов ограничен таймаутом и проходит через circuit breaker.
type Client struct {
	api     inventoryv1.InventoryOracleClient
	timeout time.Duration
	breaker *CircuitBreaker
	metrics *metrics.StorefrontMetrics
	logger  *log.Entry
	tracer  trace.Tracer
}

// Option настраивает Client.
type Option func(*Client)

// WithTimeout задаёт таймаут одного вызова; неположительное значение игнорируется.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithCircuitBreaker подключает circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithMetrics подключает метрики длительности вызовов.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger задаёт логгер клиента.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создаёт клиента поверх готового соединения.
func NewClient(cc grpc.ClientConnInterface, opts ...Option) *Client {
	c := &Client{
		api:     inventoryv1.NewInventoryOracleClient(cc),
		timeout: DefaultTimeout,
		logger:  log.WithField("component", "oracle-client"),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreaker(0, 0, c.logger)
	}
	return c
}

// Dial открывает соединение со складом. Закрывать соединение должен вызывающий.
func Dial(addr string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpcjson.WithDefaultCallOptions(),
		grpc.WithUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
	}, extra...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial inventory oracle %s: %w", addr, err)
	}
	return conn, nil
}

// Breaker возвращает circuit breaker клиента.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// CheckQuantity возвращает доступное количество товара.
func (c *Client) CheckQuantity(ctx context.Context, productID string) (int32, error) {
	var available int32
	err := c.call(ctx, "CheckQuantity", productID, func(callCtx context.Context) error {
		resp, err := c.api.CheckQuantity(callCtx, &inventoryv1.CheckQuantityRequest{ProductID: productID})
		if err != nil {
			return err
		}
		available = resp.AvailableQuantity
		return nil
	})
	return available, err
}

// CheckPrice возвращает текущую цену за единицу товара.
func (c *Client) CheckPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := c.call(ctx, "CheckPrice", productID, func(callCtx context.Context) error {
		resp, err := c.api.CheckPrice(callCtx, &inventoryv1.CheckPriceRequest{ProductID: productID})
		if err != nil {
			return err
		}
		parsed, err := decimal.NewFromString(resp.UnitPrice)
		if err != nil {
			return fmt.Errorf("parse unit price %q for %s: %w", resp.UnitPrice, productID, err)
		}
		if parsed.IsNegative() {
			return fmt.Errorf("%w: %s for %s", domain.ErrItemPriceInvalid, parsed, productID)
		}
		price = parsed
		return nil
	})
	return price, err
}

// ReserveQuantity атомарно списывает qty, если остатка хватает.
func (c *Client) ReserveQuantity(ctx context.Context, productID string, qty int32) error {
	return c.call(ctx, "ReserveQuantity", productID, func(callCtx context.Context) error {
		_, err := c.api.ReserveQuantity(callCtx, &inventoryv1.ReserveQuantityRequest{ProductID: productID, Quantity: qty})
		return err
	})
}

// ReleaseQuantity возвращает ранее списанное количество.
func (c *Client) ReleaseQuantity(ctx context.Context, productID string, qty int32) error {
	return c.call(ctx, "ReleaseQuantity", productID, func(callCtx context.Context) error {
		_, err := c.api.ReleaseQuantity(callCtx, &inventoryv1.ReleaseQuantityRequest{ProductID: productID, Quantity: qty})
		return err
	})
}

func (c *Client) call(ctx context.Context, method, productID string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "oracle."+method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("product_id", productID))
	defer span.End()

	started := time.Now()
	err := c.breaker.Execute(method, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return mapError(ctx, fn(callCtx))
	})

	result := metrics.ResultOK
	if err != nil {
		result = resultLabel(err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if domain.IsOracleFailure(err) {
			c.logger.WithFields(log.Fields{
				"method":     method,
				"product_id": productID,
				"error":      err,
			}).Warn("Inventory oracle call failed")
		}
	}
	c.metrics.ObserveOracleCall(method, result, time.Since(started))
	return err
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrProductNotFound):
		return metrics.ResultRejected
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrOracleTimeout):
		return "timeout"
	default:
		return metrics.ResultError
	}
}

// mapError переводит ошибку gRPC в доменную. Отмена родительского контекста возвращается как есть.
func mapError(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}

	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", domain.ErrOracleTimeout, err)
		}
		return err
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", domain.ErrOracleTimeout, st.Message())
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Unknown:
		return fmt.Errorf("%w: %s", domain.ErrOracleUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, st.Message())
	case codes.FailedPrecondition:
		if stockErr := insufficientStockFromStatus(st); stockErr != nil {
			return stockErr
		}
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrItemQtyInvalid, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("inventory oracle: %s: %s", st.Code(), st.Message())
	}
}

func insufficientStockFromStatus(st *status.Status) error {
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetReason() != inventoryv1.ReasonInsufficientStock {
			continue
		}
		md := info.GetMetadata()
		requested, _ := strconv.ParseInt(md[inventoryv1.MetadataRequested], 10, 32)
		available, _ := strconv.ParseInt(md[inventoryv1.MetadataAvailable], 10, 32)
		return domain.NewInsufficientStockError(md[inventoryv1.MetadataProductID], int32(requested), int32(available))
	}
	return nil
}

var (
	_ domain.StockOracle   = (*Client)(nil)
	_ domain.PriceOracle   = (*Client)(nil)
	_ domain.StockReserver = (*Client)(nil)
)
