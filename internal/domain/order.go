package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ProductID: идентификатор товара у владельца склада.
	ProductID string
	// Quantity: количество единиц товара.
	Quantity int32
	// UnitPrice: снимок цены на момент создания заказа, повторно из каталога не читается.
	UnitPrice decimal.Decimal
}

// Subtotal возвращает стоимость позиции: quantity * unitPrice.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	UserID          string
	ShippingAddress string
	Status          OrderStatus
	TotalPrice      decimal.Decimal
	Items           []OrderItem
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LineRequest: запрошенная покупателем позиция до проверки склада и цены.
type LineRequest struct {
	ProductID string
	Quantity  int32
}

// ValidateLines проверяет запрошенные позиции: хотя бы одна, qty > 0, без дублей товара.
func ValidateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return ErrItemsRequired
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			return ErrProductRequired
		}
		if line.Quantity <= 0 {
			return ErrItemQtyInvalid
		}
		if _, dup := seen[line.ProductID]; dup {
			return ErrDuplicateOrderItem
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// ComputeTotal считает сумму заказа по позициям.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrUnknownOrderStatus)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	// Сумма сравнивается через Equal: 10.0 и 10 считаются одинаковыми.
	if !ComputeTotal(o.Items).Equal(o.TotalPrice) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// Clone возвращает копию заказа с независимым срезом позиций.
func (o Order) Clone() Order {
	dst := o
	dst.Items = append([]OrderItem(nil), o.Items...)
	return dst
}
