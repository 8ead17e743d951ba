package domain

import (
	"fmt"
	"strings"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан, склад уведомлён о резерве.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed: заказ подтверждён.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPaid: оплата получена.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusDelivered: товар передан покупателю, остатки списаны окончательно.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPaid, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов в строгом режиме.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ParseOrderStatus разбирает статус без учёта регистра ("Delivered", "delivered").
// Допускается американское написание "canceled".
func ParseOrderStatus(raw string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "canceled" {
		normalized = string(OrderStatusCancelled)
	}
	status := OrderStatus(normalized)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOrderStatus, raw)
	}
	return status, nil
}

// TransitionPolicy задаёт, какие смены статуса разрешены.
type TransitionPolicy string

const (
	// TransitionPolicyPermissive разрешает любой переход (исходное поведение).
	TransitionPolicyPermissive TransitionPolicy = "permissive"
	// TransitionPolicyStrict разрешает только переходы из таблицы strictTransitions.
	TransitionPolicyStrict TransitionPolicy = "strict"
)

var strictTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusDelivered, OrderStatusCancelled},
}

// ParseTransitionPolicy разбирает значение из конфигурации; пустая строка даёт permissive.
func ParseTransitionPolicy(raw string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TransitionPolicyPermissive:
		return TransitionPolicyPermissive, nil
	case TransitionPolicyStrict:
		return TransitionPolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown status transition policy %q", raw)
	}
}

// Allows проверяет переход from -> to. Повторная установка того же статуса разрешена всегда.
func (p TransitionPolicy) Allows(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if p != TransitionPolicyStrict {
		return true
	}
	for _, next := range strictTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check возвращает ErrIllegalStatusTransition, если переход запрещён политикой.
func (p TransitionPolicy) Check(from, to OrderStatus) error {
	if p.Allows(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalStatusTransition, from, to)
}
