package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics для Kafka
const (
	// TopicInventoryEvents: ProductQuantityUpdated для владельца склада, ключ productId.
	TopicInventoryEvents = "storefront.inventory.events"
	// TopicCartEvents: ClearUserCart и события корзины, ключ userId.
	TopicCartEvents = "storefront.cart.events"
	// TopicOrderEvents: OrderDelivered и OrderDeleted, ключ orderId.
	TopicOrderEvents = "storefront.order.events"
	// TopicDeadLetterQueue: сообщения, которые не удалось опубликовать или обработать.
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers
const (
	HeaderEventType     = "event-type"
	HeaderOutboxID      = "outbox-id"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// TopicFor возвращает topic для типа события.
func TopicFor(kind domain.EventKind) (string, error) {
	switch kind {
	case domain.EventProductQuantityUpdated:
		return TopicInventoryEvents, nil
	case domain.EventClearUserCart,
		domain.EventCartItemAdded,
		domain.EventCartItemRemoved,
		domain.EventCartItemQuantityChanged,
		domain.EventCartItemsCleared:
		return TopicCartEvents, nil
	case domain.EventOrderDelivered, domain.EventOrderDeleted:
		return TopicOrderEvents, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownEventKind, kind)
	}
}

// Envelope: формат значения сообщения Kafka.
type Envelope struct {
	ID            string           `json:"id"`
	AggregateType string           `json:"aggregate_type"`
	AggregateID   string           `json:"aggregate_id"`
	EventType     domain.EventKind `json:"event_type"`
	Payload       json.RawMessage  `json:"payload"`
	OccurredAt    time.Time        `json:"occurred_at"`
	PublishedAt   time.Time        `json:"published_at"`
}

// NewEnvelope оборачивает запись outbox.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		OccurredAt:    msg.CreatedAt,
		PublishedAt:   publishedAt.UTC(),
	}
}

// Event декодирует доменное событие из конверта.
func (e Envelope) Event() (domain.Event, error) {
	return domain.DecodeEvent(e.EventType, e.Payload)
}

// DecodeEnvelope разбирает конверт из сообщения Kafka.
func DecodeEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if envelope.EventType == "" {
		if kind, ok := headerValue(message, HeaderEventType); ok {
			envelope.EventType = domain.EventKind(kind)
		}
	}
	return envelope, nil
}

func headerValue(message *sarama.ConsumerMessage, key string) (string, bool) {
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == key {
			return string(header.Value), true
		}
	}
	return "", false
}

func headersMap(message *sarama.ConsumerMessage) map[string]string {
	if len(message.Headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(message.Headers))
	for _, header := range message.Headers {
		if header != nil {
			out[string(header.Key)] = string(header.Value)
		}
	}
	return out
}
