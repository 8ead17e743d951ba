package grpcsvc

import (
	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefrontv1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func toAPICart(cart domain.Cart) *storefrontv1.Cart {
	items := make([]storefrontv1.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, storefrontv1.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return &storefrontv1.Cart{
		UserID:    cart.UserID,
		Items:     items,
		Version:   cart.Version,
		UpdatedAt: cart.UpdatedAt,
	}
}

func toAPIOrder(order domain.Order) *storefrontv1.Order {
	items := make([]storefrontv1.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, storefrontv1.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}
	return &storefrontv1.Order{
		ID:              order.ID,
		UserID:          order.UserID,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		TotalPrice:      order.TotalPrice.String(),
		Items:           items,
		Version:         order.Version,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func toLineRequests(lines []storefrontv1.OrderLine) []domain.LineRequest {
	out := make([]domain.LineRequest, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.LineRequest{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}
