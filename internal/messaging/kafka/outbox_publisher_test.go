package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	publishedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != TopicOrderEvents {
			return errors.New("unexpected topic " + pm.Topic)
		}
		key, _ := pm.Key.Encode()
		if string(key) != "order-123" {
			return errors.New("key must be the aggregate id")
		}
		headers := producerHeaders(pm)
		if headers[HeaderEventType] != string(domain.EventOrderDelivered) || headers[HeaderOutboxID] != "outbox-1" {
			return errors.New("missing event headers")
		}
		if headers["traceparent"] != "tp" {
			return errors.New("stored trace headers must be forwarded")
		}

		value, _ := pm.Value.Encode()
		var envelope Envelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" || envelope.EventType != domain.EventOrderDelivered || !envelope.PublishedAt.Equal(publishedAt) {
			return errors.New("unexpected envelope")
		}
		event, err := envelope.Event()
		if err != nil {
			return err
		}
		if event.(domain.OrderDelivered).OrderID != "order-123" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	publisher := NewOutboxPublisher(producer)
	publisher.now = func() time.Time { return publishedAt }

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-123",
		EventType:     domain.EventOrderDelivered,
		Payload:       []byte(`{"orderId":"order-123","userId":"u-1"}`),
		Headers:       map[string]string{"traceparent": "tp"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_RoutesByKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind  domain.EventKind
		topic string
	}{
		{domain.EventProductQuantityUpdated, TopicInventoryEvents},
		{domain.EventClearUserCart, TopicCartEvents},
		{domain.EventCartItemAdded, TopicCartEvents},
		{domain.EventOrderDeleted, TopicOrderEvents},
	}

	producer, mockProducer := newTestProducer(t)
	for _, tc := range cases {
		want := tc.topic
		mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
			if pm.Topic != want {
				return errors.New("unexpected topic " + pm.Topic)
			}
			return nil
		})
	}

	publisher := NewOutboxPublisher(producer)
	for _, tc := range cases {
		msg := domain.OutboxMessage{ID: string(tc.kind), AggregateID: "a-1", EventType: tc.kind, Payload: []byte("{}")}
		if err := publisher.Publish(context.Background(), msg); err != nil {
			t.Fatalf("publish %s: %v", tc.kind, err)
		}
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_UnknownKind(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	publisher := NewOutboxPublisher(producer)

	err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "x", EventType: "Mystery"})
	if !errors.Is(err, domain.ErrUnknownEventKind) {
		t.Fatalf("expected ErrUnknownEventKind, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	publisher := NewOutboxPublisher(producer)

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: domain.AggregateCart,
		AggregateID:   "u-1",
		EventType:     domain.EventClearUserCart,
		Payload:       []byte(`{"userId":"u-1"}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil)
	if err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
	if err := NewDLQPublisher(nil).Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil dlq producer")
	}
}

func TestDLQPublisher_Publish(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	payload := []byte(`{"outbox_id":"outbox-4","publish_error":"boom"}`)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != TopicDeadLetterQueue {
			return errors.New("unexpected topic " + pm.Topic)
		}
		value, _ := pm.Value.Encode()
		if string(value) != string(payload) {
			return errors.New("dlq payload must be forwarded as is")
		}
		if producerHeaders(pm)[HeaderOriginalTopic] != TopicInventoryEvents {
			return errors.New("missing original topic header")
		}
		return nil
	})

	err := NewDLQPublisher(producer).Publish(context.Background(), domain.OutboxMessage{
		ID:          "outbox-4",
		AggregateID: "p-1",
		EventType:   domain.EventProductQuantityUpdated,
		Payload:     payload,
	})
	if err != nil {
		t.Fatalf("dlq publish failed: %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
