package order

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

// UpdateOrderStatus переводит заказ в статус rawStatus.
// Повторная установка текущего статуса ничего не записывает и событий не порождает.
// OrderDelivered пишется только при переходе в delivered из другого статуса.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, rawStatus string) (result domain.Order, err error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	next, err := domain.ParseOrderStatus(rawStatus)
	if err != nil {
		s.metrics.RecordStatusTransition(metrics.StatusUnknown, metrics.ResultRejected)
		return domain.Order{}, err
	}

	ctx, span := s.startSpan(ctx, "order.update_status",
		attribute.String("order_id", orderID),
		attribute.String("status", string(next)),
	)
	defer func() { endSpan(span, err) }()

	outcome := metrics.ResultOK
	err = s.retryOnConflict(ctx, orderID, func() error {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == next {
			outcome = metrics.ResultNoop
			result = current
			return nil
		}
		if err := s.policy.Check(current.Status, next); err != nil {
			return err
		}

		updated := current.Clone()
		updated.Status = next
		updated.UpdatedAt = s.now()

		var events []domain.Event
		if next == domain.OrderStatusDelivered {
			events = append(events, domain.OrderDelivered{OrderID: updated.ID, UserID: updated.UserID, At: updated.UpdatedAt})
		}
		msgs, err := domain.NewOutboxMessages(updated.UpdatedAt, events...)
		if err != nil {
			return err
		}
		tracing.StampOutbox(ctx, msgs)
		if err := s.orders.Save(ctx, updated, msgs); err != nil {
			return err
		}

		updated.Version = current.Version + 1
		outcome = metrics.ResultOK
		result = updated
		s.logger.WithFields(log.Fields{
			"order_id": updated.ID,
			"from":     string(current.Status),
			"to":       string(next),
		}).Info("Order status updated")
		return nil
	})

	if err != nil {
		s.metrics.RecordStatusTransition(string(next), transitionResult(err))
		return domain.Order{}, err
	}
	s.metrics.RecordStatusTransition(string(next), outcome)
	return result, nil
}

// DeleteOrder удаляет заказ. Для недоставленного заказа по каждой позиции пишется
// ProductQuantityUpdated(+qty); OrderDeleted пишется всегда. Всё это одной транзакцией
// вместе с удалением. Повторное удаление возвращает ErrOrderNotFound.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) (deleted domain.Order, err error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}

	ctx, span := s.startSpan(ctx, "order.delete", attribute.String("order_id", orderID))
	defer func() { endSpan(span, err) }()

	compensations := 0
	err = s.retryOnConflict(ctx, orderID, func() error {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}

		events := make([]domain.Event, 0, len(current.Items)+1)
		if current.Status != domain.OrderStatusDelivered {
			for _, item := range current.Items {
				events = append(events, domain.ProductQuantityUpdated{ProductID: item.ProductID, QuantityChange: item.Quantity})
			}
		}
		compensations = len(events)
		at := s.now()
		events = append(events, domain.OrderDeleted{OrderID: current.ID, UserID: current.UserID, At: at})

		msgs, err := domain.NewOutboxMessages(at, events...)
		if err != nil {
			return err
		}
		tracing.StampOutbox(ctx, msgs)
		if err := s.orders.Delete(ctx, current, msgs); err != nil {
			return err
		}
		deleted = current
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordCompensationEvents(compensations)
	s.logger.WithFields(log.Fields{
		"order_id":      deleted.ID,
		"status":        string(deleted.Status),
		"compensations": compensations,
	}).Info("Order deleted")
	return deleted, nil
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrIllegalStatusTransition), errors.Is(err, domain.ErrOrderNotFound):
		return metrics.ResultRejected
	case domain.IsVersionConflict(err):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
