// Package local доставляет события outbox внутри процесса, когда Kafka не настроена.
package local

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

// Handler обрабатывает доменное событие.
type Handler func(ctx context.Context, event domain.Event) error

// Publisher реализует domain.OutboxPublisher: события с обработчиком доставляются
// синхронно, остальные только логируются.
type Publisher struct {
	handlers map[domain.EventKind]Handler
	logger   *log.Entry
}

func NewPublisher(logger *log.Entry) *Publisher {
	if logger == nil {
		logger = log.WithField("component", "local-publisher")
	}
	return &Publisher{handlers: make(map[domain.EventKind]Handler), logger: logger}
}

// Handle регистрирует обработчик для kind.
func (p *Publisher) Handle(kind domain.EventKind, handler Handler) *Publisher {
	p.handlers[kind] = handler
	return p
}

func (p *Publisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	event, err := msg.Event()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOutboxPublish, err)
	}

	fields := log.Fields{
		"outbox_id":    msg.ID,
		"event_type":   msg.EventType,
		"aggregate_id": msg.AggregateID,
	}

	handler, ok := p.handlers[msg.EventType]
	if !ok {
		p.logger.WithFields(fields).Info("event published")
		return nil
	}

	if err := handler(tracing.Extract(ctx, msg.Headers), event); err != nil {
		p.logger.WithError(err).WithFields(fields).Warn("local event handler failed")
		return err
	}
	p.logger.WithFields(fields).Debug("event delivered in-process")
	return nil
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
