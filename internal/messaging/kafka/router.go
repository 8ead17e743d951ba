package kafka

import (
	"context"
	"slices"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventHandler обрабатывает декодированное доменное событие.
type EventHandler func(ctx context.Context, event domain.Event) error

// Router раскладывает сообщения по обработчикам в зависимости от типа события.
type Router struct {
	handlers map[domain.EventKind]EventHandler
	logger   *log.Entry
	// seen: id последних успешно обработанных envelope (id записи outbox).
	seen *lru.Cache[string, struct{}]
}

func NewRouter(logger *log.Entry) *Router {
	if logger == nil {
		logger = log.WithField("component", "kafka-router")
	}
	return &Router{handlers: make(map[domain.EventKind]EventHandler), logger: logger}
}

// Handle регистрирует обработчик для kind. Повторная регистрация заменяет прежний.
func (r *Router) Handle(kind domain.EventKind, handler EventHandler) *Router {
	r.handlers[kind] = handler
	return r
}

// WithDedup включает пропуск повторных доставок: id последних size обработанных
// envelope запоминаются, повтор (ребаланс, реплей DLQ) подтверждается без вызова обработчика.
func (r *Router) WithDedup(size int) *Router {
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		r.logger.WithError(err).WithField("size", size).Warn("dedup disabled")
		return r
	}
	r.seen = seen
	return r
}

// Topics возвращает topics, на которые нужно подписаться ради зарегистрированных типов.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		topic, err := TopicFor(kind)
		if err != nil || slices.Contains(topics, topic) {
			continue
		}
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}

// HandleMessage подходит как MessageHandler для Consumer.
func (r *Router) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := DecodeEnvelope(message)
	if err != nil {
		return err
	}

	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		// В общем topic приходят и чужие типы событий.
		r.logger.WithFields(log.Fields{
			"topic":      message.Topic,
			"event_type": envelope.EventType,
		}).Debug("no handler for event type, skipping")
		return nil
	}

	if r.seen != nil && envelope.ID != "" && r.seen.Contains(envelope.ID) {
		r.logger.WithFields(log.Fields{
			"event_id":   envelope.ID,
			"event_type": envelope.EventType,
		}).Debug("duplicate delivery, skipping")
		return nil
	}

	event, err := envelope.Event()
	if err != nil {
		return err
	}
	if err := handler(ctx, event); err != nil {
		return err
	}
	if r.seen != nil && envelope.ID != "" {
		r.seen.Add(envelope.ID, struct{}{})
	}
	return nil
}
