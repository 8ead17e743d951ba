package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartUseCases: операции корзины, которые публикует адаптер.
type CartUseCases interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, qty int32) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) (domain.Cart, error)
	ChangeQuantity(ctx context.Context, userID, productID string, delta int32) (domain.Cart, error)
}

// CartService реализует storefront.v1.CartService.
type CartService struct {
	storefrontv1.UnimplementedCartServiceServer

	carts  CartUseCases
	logger *log.Entry
}

func NewCartService(carts CartUseCases, logger *log.Entry) *CartService {
	if logger == nil {
		logger = log.WithField("component", "cart-grpc")
	}
	return &CartService{carts: carts, logger: logger}
}

func (s *CartService) GetCart(ctx context.Context, req *storefrontv1.GetCartRequest) (*storefrontv1.GetCartResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	cart, err := s.carts.GetCart(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(s.logger, "GetCart", err)
	}
	return &storefrontv1.GetCartResponse{Cart: toAPICart(cart)}, nil
}

func (s *CartService) AddItem(ctx context.Context, req *storefrontv1.AddItemRequest) (*storefrontv1.AddItemResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	cart, err := s.carts.AddItem(ctx, req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, toStatus(s.logger, "AddItem", err)
	}
	return &storefrontv1.AddItemResponse{Cart: toAPICart(cart)}, nil
}

func (s *CartService) RemoveItem(ctx context.Context, req *storefrontv1.RemoveItemRequest) (*storefrontv1.RemoveItemResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	cart, err := s.carts.RemoveItem(ctx, req.UserID, req.ProductID)
	if err != nil {
		return nil, toStatus(s.logger, "RemoveItem", err)
	}
	return &storefrontv1.RemoveItemResponse{Cart: toAPICart(cart)}, nil
}

func (s *CartService) ClearCart(ctx context.Context, req *storefrontv1.ClearCartRequest) (*storefrontv1.ClearCartResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	cart, err := s.carts.Clear(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(s.logger, "ClearCart", err)
	}
	return &storefrontv1.ClearCartResponse{Cart: toAPICart(cart)}, nil
}

func (s *CartService) ChangeQuantity(ctx context.Context, req *storefrontv1.ChangeQuantityRequest) (*storefrontv1.ChangeQuantityResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	cart, err := s.carts.ChangeQuantity(ctx, req.UserID, req.ProductID, req.Delta)
	if err != nil {
		return nil, toStatus(s.logger, "ChangeQuantity", err)
	}
	return &storefrontv1.ChangeQuantityResponse{Cart: toAPICart(cart)}, nil
}

var _ storefrontv1.CartServiceServer = (*CartService)(nil)
