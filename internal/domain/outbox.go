package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus описывает состояние записи transactional outbox.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     EventKind
	Payload       []byte
	// Headers переносят контекст трассировки от транзакции до публикации.
	Headers   map[string]string
	CreatedAt time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// NewOutboxMessage сериализует событие в запись outbox.
func NewOutboxMessage(event Event, createdAt time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s: %w", event.Kind(), err)
	}
	return OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.Kind(),
		Payload:       payload,
		CreatedAt:     createdAt.UTC(),
	}, nil
}

// NewOutboxMessages сериализует несколько событий, сохраняя порядок.
func NewOutboxMessages(createdAt time.Time, events ...Event) ([]OutboxMessage, error) {
	msgs := make([]OutboxMessage, 0, len(events))
	for _, event := range events {
		msg, err := NewOutboxMessage(event, createdAt)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Event восстанавливает доменное событие из записи.
func (m OutboxMessage) Event() (Event, error) {
	return DecodeEvent(m.EventType, m.Payload)
}
