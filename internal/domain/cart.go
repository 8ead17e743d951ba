package domain

import "time"

// CartItem: строка корзины. Количество всегда > 0.
type CartItem struct {
	ProductID string
	Quantity  int32
}

// Cart принадлежит ровно одному пользователю; идентичность корзины = UserID.
type Cart struct {
	UserID string
	Items  []CartItem
	// Version используется для optimistic locking; 0 означает, что корзина ещё не сохранена.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCart возвращает пустую несохранённую корзину.
func NewCart(userID string) Cart {
	return Cart{UserID: userID, Items: []CartItem{}}
}

// Persisted сообщает, была ли корзина уже записана в хранилище.
func (c *Cart) Persisted() bool {
	return c.Version > 0
}

// Item возвращает строку корзины по товару.
func (c *Cart) Item(productID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// SetQuantity создаёт или перезаписывает строку. Количество <= 0 удаляет строку.
func (c *Cart) SetQuantity(productID string, qty int32) {
	if qty <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			return
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: qty})
}

// Remove удаляет строку и сообщает, была ли она в корзине.
func (c *Cart) Remove(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear удаляет все строки; сама корзина остаётся.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// Empty сообщает, что в корзине нет строк.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Clone возвращает глубокую копию корзины.
func (c Cart) Clone() Cart {
	dst := c
	dst.Items = append([]CartItem{}, c.Items...)
	return dst
}

// ValidateInvariants проверяет, что в корзине нет строк с количеством <= 0.
func (c *Cart) ValidateInvariants() []error {
	var errs []error
	if c.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	for _, item := range c.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}
	return errs
}
