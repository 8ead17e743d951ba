package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxPublisher публикует записи outbox в topic, выбранный по типу события.
type OutboxPublisher struct {
	producer *Producer
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) *OutboxPublisher {
	return &OutboxPublisher{producer: producer, now: time.Now}
}

func (p *OutboxPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	topic, err := TopicFor(event.EventType)
	if err != nil {
		return err
	}

	value, err := json.Marshal(NewEnvelope(event, p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return p.producer.Send(ctx, topic, partitionKey(event), value, withEventHeaders(event))
}

// DLQPublisher отправляет в DLQ записи outbox, которые не удалось опубликовать.
type DLQPublisher struct {
	producer *Producer
}

// NewDLQPublisher создаёт паблишер в TopicDeadLetterQueue.
func NewDLQPublisher(producer *Producer) *DLQPublisher {
	return &DLQPublisher{producer: producer}
}

// Publish отправляет payload как есть: воркер уже упаковал исходное сообщение и ошибку.
func (p *DLQPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	headers := withEventHeaders(event)
	if topic, err := TopicFor(event.EventType); err == nil {
		headers[HeaderOriginalTopic] = topic
	}
	headers[HeaderFailedAt] = time.Now().UTC().Format(time.RFC3339)

	return p.producer.Send(ctx, TopicDeadLetterQueue, partitionKey(event), event.Payload, headers)
}

func partitionKey(event domain.OutboxMessage) string {
	if event.AggregateID != "" {
		return event.AggregateID
	}
	return event.ID
}

func withEventHeaders(event domain.OutboxMessage) map[string]string {
	headers := make(map[string]string, len(event.Headers)+2)
	for k, v := range event.Headers {
		headers[k] = v
	}
	headers[HeaderEventType] = string(event.EventType)
	headers[HeaderOutboxID] = event.ID
	return headers
}

var (
	_ domain.OutboxPublisher = (*OutboxPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
