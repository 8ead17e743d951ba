// Package inventoryv1: контракт inventory.v1.InventoryOracle: синхронные запросы
// остатка и цены у владельца склада и атомарный резерв.
package inventoryv1

type CheckQuantityRequest struct {
	ProductID string `json:"product_id"`
}

type CheckQuantityResponse struct {
	ProductID         string `json:"product_id"`
	AvailableQuantity int32  `json:"available_quantity"`
}

type CheckPriceRequest struct {
	ProductID string `json:"product_id"`
}

type CheckPriceResponse struct {
	ProductID string `json:"product_id"`
	// UnitPrice: десятичная строка, например "10.50".
	UnitPrice string `json:"unit_price"`
}

type ReserveQuantityRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type ReserveQuantityResponse struct {
	ProductID string `json:"product_id"`
	Remaining int32  `json:"remaining"`
}

type ReleaseQuantityRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type ReleaseQuantityResponse struct {
	ProductID string `json:"product_id"`
	Remaining int32  `json:"remaining"`
}

// Причина и ключи метаданных errdetails.ErrorInfo для отказа по нехватке остатка.
const (
	ErrorDomain             = "inventory.v1"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	MetadataProductID       = "product_id"
	MetadataRequested       = "requested"
	MetadataAvailable       = "available"
)

func (x *CheckQuantityRequest) GetProductID() string {
	if x == nil {
		return ""
	}
	return x.ProductID
}

func (x *CheckPriceRequest) GetProductID() string {
	if x == nil {
		return ""
	}
	return x.ProductID
}

func (x *ReserveQuantityRequest) GetProductID() string {
	if x == nil {
		return ""
	}
	return x.ProductID
}

func (x *ReleaseQuantityRequest) GetProductID() string {
	if x == nil {
		return ""
	}
	return x.ProductID
}
