package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/local"
	"github.com/vladislavdragonenkov/storefront/internal/oracle"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
)

type eventHandler = func(ctx context.Context, event domain.Event) error

// consumerDedupWindow: сколько последних id событий consumer помнит для пропуска повторов.
const consumerDedupWindow = 10000

// eventHandlers: подписчики storefront: корзина чистится по ClearUserCart,
// встроенный склад (если он есть) применяет ProductQuantityUpdated.
func eventHandlers(carts *cart.Service, book *oracle.StockBook, logger *log.Entry) map[domain.EventKind]eventHandler {
	handlers := map[domain.EventKind]eventHandler{
		domain.EventClearUserCart: func(ctx context.Context, event domain.Event) error {
			cmd, ok := event.(domain.ClearUserCart)
			if !ok {
				return fmt.Errorf("unexpected event %T for %s", event, domain.EventClearUserCart)
			}
			return carts.HandleClearUserCart(ctx, cmd)
		},
	}
	if book != nil {
		handlers[domain.EventProductQuantityUpdated] = func(_ context.Context, event domain.Event) error {
			change, ok := event.(domain.ProductQuantityUpdated)
			if !ok {
				return fmt.Errorf("unexpected event %T for %s", event, domain.EventProductQuantityUpdated)
			}
			left, err := book.ApplyQuantityChange(change)
			if err != nil {
				return err
			}
			logger.WithFields(log.Fields{
				"product_id":      change.ProductID,
				"quantity_change": change.QuantityChange,
				"quantity":        left,
			}).Debug("stock updated")
			return nil
		}
	}
	return handlers
}

func newLocalPublisher(handlers map[domain.EventKind]eventHandler, logger *log.Entry) *local.Publisher {
	publisher := local.NewPublisher(logger)
	for kind, h := range handlers {
		publisher.Handle(kind, h)
	}
	return publisher
}

func newEventRouter(handlers map[domain.EventKind]eventHandler, logger *log.Entry) *kafka.Router {
	router := kafka.NewRouter(logger).WithDedup(consumerDedupWindow)
	for kind, h := range handlers {
		router.Handle(kind, h)
	}
	return router
}
