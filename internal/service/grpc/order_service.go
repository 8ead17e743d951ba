package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderUseCases: операции заказов, которые публикует адаптер.
type OrderUseCases interface {
	CreateOrder(ctx context.Context, userID, shippingAddress string, lines []domain.LineRequest) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, rawStatus string) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// OrderService реализует storefront.v1.OrderService.
type OrderService struct {
	storefrontv1.UnimplementedOrderServiceServer

	orders   OrderUseCases
	idemRepo domain.IdempotencyRepository
	idemTTL  time.Duration
	logger   *log.Entry
}

// NewOrderService конструирует сервис. idemRepo может быть nil: тогда повтор по ключу не поддерживается.
func NewOrderService(orders OrderUseCases, idemRepo domain.IdempotencyRepository, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.WithField("component", "order-grpc")
	}
	return &OrderService{orders: orders, idemRepo: idemRepo, idemTTL: DefaultIdempotencyTTL, logger: logger}
}

// WithIdempotencyTTL задаёт время жизни сохранённых ответов; неположительное значение игнорируется.
func (s *OrderService) WithIdempotencyTTL(ttl time.Duration) *OrderService {
	if ttl > 0 {
		s.idemTTL = ttl
	}
	return s
}

// CreateOrder оформляет заказ. С idempotency-key повтор возвращает первый результат.
func (s *OrderService) CreateOrder(ctx context.Context, req *storefrontv1.CreateOrderRequest) (*storefrontv1.CreateOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	return withIdempotency(s, ctx, storefrontv1.OrderService_CreateOrder_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.CreateOrderResponse, error) {
			order, err := s.orders.CreateOrder(ctx, req.UserID, req.ShippingAddress, toLineRequests(req.Items))
			if err != nil {
				return nil, toStatus(s.logger, "CreateOrder", err)
			}
			return &storefrontv1.CreateOrderResponse{Order: toAPIOrder(order)}, nil
		},
	)
}

// GetOrder возвращает заказ по идентификатору.
func (s *OrderService) GetOrder(ctx context.Context, req *storefrontv1.GetOrderRequest) (*storefrontv1.GetOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(s.logger, "GetOrder", err)
	}
	return &storefrontv1.GetOrderResponse{Order: toAPIOrder(order)}, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *OrderService) ListOrders(ctx context.Context, req *storefrontv1.ListOrdersRequest) (*storefrontv1.ListOrdersResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	orders, err := s.orders.ListOrders(ctx, req.UserID, int(req.Limit))
	if err != nil {
		return nil, toStatus(s.logger, "ListOrders", err)
	}

	result := make([]*storefrontv1.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, toAPIOrder(order))
	}
	return &storefrontv1.ListOrdersResponse{Orders: result}, nil
}

// UpdateOrderStatus меняет статус заказа; тот же статус ничего не меняет.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *storefrontv1.UpdateOrderStatusRequest) (*storefrontv1.UpdateOrderStatusResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	order, err := s.orders.UpdateOrderStatus(ctx, req.OrderID, req.Status)
	if err != nil {
		return nil, toStatus(s.logger, "UpdateOrderStatus", err)
	}
	return &storefrontv1.UpdateOrderStatusResponse{Order: toAPIOrder(order)}, nil
}

// DeleteOrder удаляет заказ и записывает компенсирующие события.
func (s *OrderService) DeleteOrder(ctx context.Context, req *storefrontv1.DeleteOrderRequest) (*storefrontv1.DeleteOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	return withIdempotency(s, ctx, storefrontv1.OrderService_DeleteOrder_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.DeleteOrderResponse, error) {
			order, err := s.orders.DeleteOrder(ctx, req.OrderID)
			if err != nil {
				return nil, toStatus(s.logger, "DeleteOrder", err)
			}
			return &storefrontv1.DeleteOrderResponse{OrderID: order.ID, Deleted: true}, nil
		},
	)
}

var _ storefrontv1.OrderServiceServer = (*OrderService)(nil)
