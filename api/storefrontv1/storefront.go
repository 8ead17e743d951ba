// Package storefrontv1: публичный контракт storefront.v1: корзина и заказы.
package storefrontv1

import "time"

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type GetCartRequest struct {
	UserID string `json:"user_id"`
}

type GetCartResponse struct {
	Cart *Cart `json:"cart"`
}

type AddItemRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type AddItemResponse struct {
	Cart *Cart `json:"cart"`
}

type RemoveItemRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type RemoveItemResponse struct {
	Cart *Cart `json:"cart"`
}

type ClearCartRequest struct {
	UserID string `json:"user_id"`
}

type ClearCartResponse struct {
	Cart *Cart `json:"cart"`
}

type ChangeQuantityRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	// Delta: знаковое изменение количества.
	Delta int32 `json:"delta"`
}

type ChangeQuantityResponse struct {
	Cart *Cart `json:"cart"`
}

type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ShippingAddress string      `json:"shipping_address"`
	Status          string      `json:"status"`
	TotalPrice      string      `json:"total_price"`
	Items           []OrderItem `json:"items"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type CreateOrderRequest struct {
	UserID          string      `json:"user_id"`
	ShippingAddress string      `json:"shipping_address"`
	Items           []OrderLine `json:"items"`
}

type CreateOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersRequest struct {
	UserID string `json:"user_id"`
	Limit  int32  `json:"limit"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	// Status разбирается без учёта регистра: "Delivered", "paid".
	Status string `json:"status"`
}

type UpdateOrderStatusResponse struct {
	Order *Order `json:"order"`
}

type DeleteOrderRequest struct {
	OrderID string `json:"order_id"`
}

type DeleteOrderResponse struct {
	OrderID string `json:"order_id"`
	Deleted bool   `json:"deleted"`
}

// IdempotencyKeyHeader: ключ gRPC-метаданных для идемпотентных вызовов.
const IdempotencyKeyHeader = "idempotency-key"

// Детали ошибок в google.rpc.ErrorInfo.
const (
	ErrorDomain             = "storefront.v1"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	MetadataProductID       = "product_id"
	MetadataRequested       = "requested"
	MetadataAvailable       = "available"
)
