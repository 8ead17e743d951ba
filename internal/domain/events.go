package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind: имя типа события, оно же event_type в outbox и заголовок Kafka.
type EventKind string

const (
	EventProductQuantityUpdated  EventKind = "ProductQuantityUpdated"
	EventClearUserCart           EventKind = "ClearUserCart"
	EventCartItemAdded           EventKind = "CartItemAdded"
	EventCartItemRemoved         EventKind = "CartItemRemoved"
	EventCartItemQuantityChanged EventKind = "CartItemQuantityChanged"
	EventCartItemsCleared        EventKind = "CartItemsCleared"
	EventOrderDelivered          EventKind = "OrderDelivered"
	EventOrderDeleted            EventKind = "OrderDeleted"
)

// Типы агрегатов, к которым относятся события.
const (
	AggregateProduct = "product"
	AggregateCart    = "cart"
	AggregateOrder   = "order"
)

// Event: закрытый набор доменных событий. Реализовать его можно только внутри пакета.
type Event interface {
	Kind() EventKind
	AggregateType() string
	// AggregateID используется как ключ партиции.
	AggregateID() string
	sealed()
}

// ProductQuantityUpdated: сигнал владельцу склада: отрицательная дельта резервирует, положительная возвращает.
type ProductQuantityUpdated struct {
	ProductID      string `json:"productId"`
	QuantityChange int32  `json:"quantityChange"`
}

// ClearUserCart просит сторону корзины очистить корзину пользователя после оформления заказа.
type ClearUserCart struct {
	UserID string `json:"userId"`
}

type CartItemAdded struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int32     `json:"quantity"`
	At        time.Time `json:"at"`
}

type CartItemRemoved struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	At        time.Time `json:"at"`
}

type CartItemQuantityChanged struct {
	UserID      string    `json:"userId"`
	ProductID   string    `json:"productId"`
	NewQuantity int32     `json:"newQuantity"`
	At          time.Time `json:"at"`
}

type CartItemsCleared struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

type OrderDelivered struct {
	OrderID string    `json:"orderId"`
	UserID  string    `json:"userId"`
	At      time.Time `json:"at"`
}

type OrderDeleted struct {
	OrderID string    `json:"orderId"`
	UserID  string    `json:"userId"`
	At      time.Time `json:"at"`
}

func (ProductQuantityUpdated) Kind() EventKind { return EventProductQuantityUpdated }
func (ProductQuantityUpdated) AggregateType() string { return AggregateProduct }
func (e ProductQuantityUpdated) AggregateID() string { return e.ProductID }
func (ProductQuantityUpdated) sealed() {}

func (ClearUserCart) Kind() EventKind { return EventClearUserCart }
func (ClearUserCart) AggregateType() string { return AggregateCart }
func (e ClearUserCart) AggregateID() string { return e.UserID }
func (ClearUserCart) sealed() {}

func (CartItemAdded) Kind() EventKind { return EventCartItemAdded }
func (CartItemAdded) AggregateType() string { return AggregateCart }
func (e CartItemAdded) AggregateID() string { return e.UserID }
func (CartItemAdded) sealed() {}

func (CartItemRemoved) Kind() EventKind { return EventCartItemRemoved }
func (CartItemRemoved) AggregateType() string { return AggregateCart }
func (e CartItemRemoved) AggregateID() string { return e.UserID }
func (CartItemRemoved) sealed() {}

func (CartItemQuantityChanged) Kind() EventKind { return EventCartItemQuantityChanged }
func (CartItemQuantityChanged) AggregateType() string { return AggregateCart }
func (e CartItemQuantityChanged) AggregateID() string { return e.UserID }
func (CartItemQuantityChanged) sealed() {}

func (CartItemsCleared) Kind() EventKind { return EventCartItemsCleared }
func (CartItemsCleared) AggregateType() string { return AggregateCart }
func (e CartItemsCleared) AggregateID() string { return e.UserID }
func (CartItemsCleared) sealed() {}

func (OrderDelivered) Kind() EventKind { return EventOrderDelivered }
func (OrderDelivered) AggregateType() string { return AggregateOrder }
func (e OrderDelivered) AggregateID() string { return e.OrderID }
func (OrderDelivered) sealed() {}

func (OrderDeleted) Kind() EventKind { return EventOrderDeleted }
func (OrderDeleted) AggregateType() string { return AggregateOrder }
func (e OrderDeleted) AggregateID() string { return e.OrderID }
func (OrderDeleted) sealed() {}

// EventKinds перечисляет все поддерживаемые типы событий.
func EventKinds() []EventKind {
	return []EventKind{
		EventProductQuantityUpdated,
		EventClearUserCart,
		EventCartItemAdded,
		EventCartItemRemoved,
		EventCartItemQuantityChanged,
		EventCartItemsCleared,
		EventOrderDelivered,
		EventOrderDeleted,
	}
}

// DecodeEvent восстанавливает событие по типу и JSON-представлению.
func DecodeEvent(kind EventKind, payload []byte) (Event, error) {
	var (
		event Event
		err   error
	)
	switch kind {
	case EventProductQuantityUpdated:
		event, err = decodeAs[ProductQuantityUpdated](payload)
	case EventClearUserCart:
		event, err = decodeAs[ClearUserCart](payload)
	case EventCartItemAdded:
		event, err = decodeAs[CartItemAdded](payload)
	case EventCartItemRemoved:
		event, err = decodeAs[CartItemRemoved](payload)
	case EventCartItemQuantityChanged:
		event, err = decodeAs[CartItemQuantityChanged](payload)
	case EventCartItemsCleared:
		event, err = decodeAs[CartItemsCleared](payload)
	case EventOrderDelivered:
		event, err = decodeAs[OrderDelivered](payload)
	case EventOrderDeleted:
		event, err = decodeAs[OrderDeleted](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	if event.AggregateID() == "" {
		return nil, fmt.Errorf("decode %s: %w", kind, ErrEventAggregateRequired)
	}
	return event, nil
}

func decodeAs[T Event](payload []byte) (Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}
