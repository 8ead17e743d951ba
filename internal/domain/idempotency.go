package domain

import (
	"strings"
	"time"
)

// DefaultIdempotencyTTL: срок, в течение которого ключ воспроизводит закреплённый результат.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStatus: состояние ключа idempotency-key.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing: ключ захвачен, обработка не завершена.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone: ответ закреплён за ключом.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed: закреплён детерминированный отказ (нехватка товара, неверный запрос).
	// Временные сбои не закрепляются, ключ освобождается через Release.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Settled сообщает, что результат закреплён и повтор с тем же ключом его воспроизведёт.
func (s IdempotencyStatus) Settled() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord: результат CreateOrder или DeleteOrder, закреплённый за ключом.
// StatusCode хранит gRPC-код ответа.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	StatusCode   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewProcessingRecord нормализует ключ и хеш и собирает запись в состоянии processing.
// Нулевой ttlAt заменяется на now+DefaultIdempotencyTTL.
func NewProcessingRecord(key, requestHash string, ttlAt, now time.Time) (IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return IdempotencyRecord{}, ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return IdempotencyRecord{}, ErrIdempotencyRequestHashRequired
	}
	if ttlAt.IsZero() {
		ttlAt = now.Add(DefaultIdempotencyTTL)
	}
	return IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Expired: запись больше не держит ключ, его можно захватить заново.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Conflict возвращает ошибку повторного захвата живого ключа:
// ErrIdempotencyHashMismatch для другого тела запроса, иначе ErrIdempotencyKeyAlreadyExists.
func (r IdempotencyRecord) Conflict(requestHash string) error {
	if r.RequestHash != strings.TrimSpace(requestHash) {
		return ErrIdempotencyHashMismatch
	}
	return ErrIdempotencyKeyAlreadyExists
}
