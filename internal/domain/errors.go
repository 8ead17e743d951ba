package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка повторяющегося товара в одном заказе.
	ErrDuplicateOrderItem = errors.New("order contains duplicate product lines")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrCartNotFound возвращается, если корзины пользователя ещё нет.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartVersionConflict сигнализирует о конкурентном изменении корзины.
	ErrCartVersionConflict = errors.New("cart version conflict")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderAlreadyExists: запись с таким ID уже существует.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrUnknownOrderStatus: статус не распознан.
	ErrUnknownOrderStatus = errors.New("unknown order status")
	// ErrIllegalStatusTransition: переход запрещён строгой таблицей переходов.
	ErrIllegalStatusTransition = errors.New("illegal order status transition")

	// ErrInsufficientStock: бизнес-ошибка склада: запрошено больше, чем доступно.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNotFound: склад не знает такой товар.
	ErrProductNotFound = errors.New("product not found")
	// ErrOracleUnavailable: склад недоступен, можно повторить попытку.
	ErrOracleUnavailable = errors.New("inventory oracle unavailable")
	// ErrOracleTimeout: склад не ответил за отведённое время.
	ErrOracleTimeout = errors.New("inventory oracle timeout")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxMessageNotFound: сообщение outbox не найдено.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")
	// ErrUnknownEventKind: тип события не входит в закрытый набор.
	ErrUnknownEventKind = errors.New("unknown event kind")
	// ErrEventAggregateRequired: в событии нет id агрегата (пустой или null payload).
	ErrEventAggregateRequired = errors.New("event aggregate id is required")

	// ErrIdempotencyKeyAlreadyExists: ключ уже занят другим запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ использован повторно с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different payload")
	// ErrIdempotencyKeyRequired: пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound: запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// InsufficientStockError описывает нехватку товара для конкретной позиции.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Is позволяет сравнивать ошибку с ErrInsufficientStock через errors.Is.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NewInsufficientStockError создаёт ошибку нехватки товара.
func NewInsufficientStockError(productID string, requested, available int32) error {
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий корзины или заказа.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrCartVersionConflict)
}

// IsIdempotencyConflict проверяет конфликт ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsOracleFailure проверяет, что ошибка относится к инфраструктуре склада, а не к бизнес-ответу.
func IsOracleFailure(err error) bool {
	return errors.Is(err, ErrOracleUnavailable) || errors.Is(err, ErrOracleTimeout)
}
