package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func envelopeMessage(t *testing.T, event domain.Event) *sarama.ConsumerMessage {
	t.Helper()
	msg, err := domain.NewOutboxMessage(event, time.Now())
	require.NoError(t, err)
	value, err := json.Marshal(NewEnvelope(msg, time.Now()))
	require.NoError(t, err)
	topic, err := TopicFor(event.Kind())
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: topic, Key: []byte(event.AggregateID()), Value: value}
}

func TestRouter_DispatchesByKind(t *testing.T) {
	var got []domain.Event
	router := NewRouter(nil).
		Handle(domain.EventClearUserCart, func(_ context.Context, event domain.Event) error {
			got = append(got, event)
			return nil
		}).
		Handle(domain.EventProductQuantityUpdated, func(_ context.Context, event domain.Event) error {
			got = append(got, event)
			return nil
		})

	require.Equal(t, []string{TopicCartEvents, TopicInventoryEvents}, router.Topics())

	ctx := context.Background()
	require.NoError(t, router.HandleMessage(ctx, envelopeMessage(t, domain.ClearUserCart{UserID: "u-1"})))
	require.NoError(t, router.HandleMessage(ctx, envelopeMessage(t, domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: 3})))
	// Событие корзины без обработчика пропускается.
	require.NoError(t, router.HandleMessage(ctx, envelopeMessage(t, domain.CartItemsCleared{UserID: "u-1"})))

	require.Equal(t, []domain.Event{
		domain.ClearUserCart{UserID: "u-1"},
		domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: 3},
	}, got)
}

func TestRouter_HandlerErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	router := NewRouter(nil).Handle(domain.EventOrderDeleted, func(context.Context, domain.Event) error { return boom })

	err := router.HandleMessage(context.Background(), envelopeMessage(t, domain.OrderDeleted{OrderID: "o-1"}))
	require.ErrorIs(t, err, boom)
}

func TestRouter_MalformedMessage(t *testing.T) {
	router := NewRouter(nil).Handle(domain.EventClearUserCart, func(context.Context, domain.Event) error { return nil })

	err := router.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")})
	require.Error(t, err)

	bad := &sarama.ConsumerMessage{Value: []byte(`{"event_type":"ClearUserCart","payload":"oops"}`)}
	require.Error(t, router.HandleMessage(context.Background(), bad))
}

func TestRouter_DedupSkipsRedelivery(t *testing.T) {
	var applied []int32
	boom := errors.New("boom")
	fail := true
	router := NewRouter(nil).WithDedup(2).
		Handle(domain.EventProductQuantityUpdated, func(_ context.Context, event domain.Event) error {
			if fail {
				fail = false
				return boom
			}
			applied = append(applied, event.(domain.ProductQuantityUpdated).QuantityChange)
			return nil
		})

	ctx := context.Background()
	first := envelopeMessage(t, domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: -2})

	// Неудачная обработка не запоминается: повтор доходит до обработчика.
	require.ErrorIs(t, router.HandleMessage(ctx, first), boom)
	require.NoError(t, router.HandleMessage(ctx, first))
	require.NoError(t, router.HandleMessage(ctx, first))
	require.Equal(t, []int32{-2}, applied)

	// Вытесненный из окна id снова обрабатывается.
	require.NoError(t, router.HandleMessage(ctx, envelopeMessage(t, domain.ProductQuantityUpdated{ProductID: "p-1", QuantityChange: 1})))
	require.NoError(t, router.HandleMessage(ctx, envelopeMessage(t, domain.ProductQuantityUpdated{ProductID: "p-2", QuantityChange: 1})))
	require.NoError(t, router.HandleMessage(ctx, first))
	require.Equal(t, []int32{-2, 1, 1, -2}, applied)
}

func TestRouter_DedupDisabledForInvalidSize(t *testing.T) {
	calls := 0
	router := NewRouter(nil).WithDedup(0).
		Handle(domain.EventClearUserCart, func(context.Context, domain.Event) error {
			calls++
			return nil
		})
	msg := envelopeMessage(t, domain.ClearUserCart{UserID: "u-1"})
	require.NoError(t, router.HandleMessage(context.Background(), msg))
	require.NoError(t, router.HandleMessage(context.Background(), msg))
	require.Equal(t, 2, calls)
}

func TestDecodeEnvelope_FallsBackToHeader(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Value:   []byte(`{"id":"m-1","payload":{"userId":"u-1"}}`),
		Headers: []*sarama.RecordHeader{{Key: []byte(HeaderEventType), Value: []byte(domain.EventClearUserCart)}},
	}
	envelope, err := DecodeEnvelope(msg)
	require.NoError(t, err)
	require.Equal(t, domain.EventClearUserCart, envelope.EventType)

	event, err := envelope.Event()
	require.NoError(t, err)
	require.Equal(t, domain.ClearUserCart{UserID: "u-1"}, event)
}

func TestTopicFor_CoversAllKinds(t *testing.T) {
	for _, kind := range domain.EventKinds() {
		topic, err := TopicFor(kind)
		require.NoError(t, err, kind)
		require.NotEmpty(t, topic)
	}
	_, err := TopicFor("Nope")
	require.ErrorIs(t, err, domain.ErrUnknownEventKind)
}
