package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StockOracle отвечает, сколько единиц товара доступно у владельца склада.
type StockOracle interface {
	CheckQuantity(ctx context.Context, productID string) (int32, error)
}

// PriceOracle отвечает текущей ценой за единицу товара.
type PriceOracle interface {
	CheckPrice(ctx context.Context, productID string) (decimal.Decimal, error)
}

// StockReserver: атомарный резерв "списать, если хватает" и его отмена.
type StockReserver interface {
	// ReserveQuantity возвращает *InsufficientStockError, если остатка не хватает; остаток при этом не меняется.
	ReserveQuantity(ctx context.Context, productID string, qty int32) error
	ReleaseQuantity(ctx context.Context, productID string, qty int32) error
}

// CartRepository описывает требования к хранилищу корзин.
type CartRepository interface {
	// Get возвращает корзину пользователя или ErrCartNotFound.
	Get(ctx context.Context, userID string) (Cart, error)
	// Save записывает корзину и события одной транзакцией.
	// Version == 0 означает вставку; иначе версия в хранилище должна совпасть, иначе ErrCartVersionConflict.
	// При успехе Version в хранилище увеличивается на 1.
	Save(ctx context.Context, cart Cart, events []OutboxMessage) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с событиями. ErrOrderAlreadyExists при дубле ID.
	Create(ctx context.Context, order Order, events []OutboxMessage) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми; limit <= 0 снимает ограничение.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order, events []OutboxMessage) error
	// Delete удаляет заказ с проверкой версии и записывает события той же транзакцией.
	Delete(ctx context.Context, order Order, events []OutboxMessage) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, msg OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msgs ...OutboxMessage) error
	// PullPending возвращает неотправленные сообщения в порядке вставки.
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	// CreateProcessing захватывает ключ. Запись с истёкшим TTL считается отсутствующей.
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, statusCode int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, statusCode int) error
	// Release снимает захват processing-записи с тем же хешем; закреплённые записи не трогает.
	Release(ctx context.Context, key, requestHash string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
