package domain

import (
	"fmt"
	"strings"
)

// ReservationMode определяет, как оформление заказа резервирует остатки.
type ReservationMode string

const (
	// ReservationModeCheck: проверка остатка и событие ProductQuantityUpdated с отрицательной дельтой.
	// Два параллельных заказа могут пройти проверку по одному и тому же остатку.
	ReservationModeCheck ReservationMode = "check"
	// ReservationModeReserve: атомарное списание на стороне склада через ReserveQuantity.
	ReservationModeReserve ReservationMode = "reserve"
)

// ParseReservationMode разбирает значение из конфигурации; пустая строка даёт check.
func ParseReservationMode(raw string) (ReservationMode, error) {
	switch ReservationMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReservationModeCheck:
		return ReservationModeCheck, nil
	case ReservationModeReserve:
		return ReservationModeReserve, nil
	default:
		return "", fmt.Errorf("unknown reservation mode %q", raw)
	}
}

// Reservation: успешно списанное на складе количество, которое придётся вернуть при откате.
type Reservation struct {
	ProductID string
	Qty       int32
}

// Reservations накапливает резервы в порядке получения.
type Reservations []Reservation

// Add добавляет резерв.
func (r *Reservations) Add(productID string, qty int32) {
	*r = append(*r, Reservation{ProductID: productID, Qty: qty})
}

// Reverse возвращает резервы в обратном порядке для компенсации.
func (r Reservations) Reverse() []Reservation {
	out := make([]Reservation, 0, len(r))
	for i := len(r) - 1; i >= 0; i-- {
		out = append(out, r[i])
	}
	return out
}
