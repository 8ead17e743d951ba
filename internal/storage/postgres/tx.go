package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const uniqueViolationCode = "23505"

// withTx выполняет fn в транзакции с таймаутом opTimeout; ошибка fn откатывает транзакцию.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// insertOutboxTx пишет события в outbox внутри транзакции агрегата.
func insertOutboxTx(ctx context.Context, tx *sql.Tx, msgs []domain.OutboxMessage) error {
	now := time.Now().UTC()
	for _, msg := range msgs {
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		headers := msg.Headers
		if headers == nil {
			headers = map[string]string{}
		}
		headersJSON, err := json.Marshal(headers)
		if err != nil {
			return fmt.Errorf("marshal outbox headers: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_messages (
				id, aggregate_type, aggregate_id, event_type, payload, headers,
				status, attempt_count, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,'pending',0,$7,$8)
		`,
			msg.ID, msg.AggregateType, msg.AggregateID, string(msg.EventType),
			string(msg.Payload), string(headersJSON), createdAt, now,
		); err != nil {
			return fmt.Errorf("insert outbox message %s: %w", msg.EventType, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}
