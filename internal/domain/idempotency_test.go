package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestIdempotencyStatus(t *testing.T) {
	tests := []struct {
		status  domain.IdempotencyStatus
		valid   bool
		settled bool
	}{
		{status: domain.IdempotencyStatusProcessing, valid: true},
		{status: domain.IdempotencyStatusDone, valid: true, settled: true},
		{status: domain.IdempotencyStatusFailed, valid: true, settled: true},
		{status: domain.IdempotencyStatus("broken")},
	}

	for _, tc := range tests {
		if got := tc.status.Valid(); got != tc.valid {
			t.Fatalf("%q: Valid()=%v, want %v", tc.status, got, tc.valid)
		}
		if got := tc.status.Settled(); got != tc.settled {
			t.Fatalf("%q: Settled()=%v, want %v", tc.status, got, tc.settled)
		}
	}
}

func TestNewProcessingRecord(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	record, err := domain.NewProcessingRecord(" key ", " hash ", time.Time{}, now)
	if err != nil {
		t.Fatalf("NewProcessingRecord: %v", err)
	}
	if record.Key != "key" || record.RequestHash != "hash" {
		t.Fatalf("key/hash not trimmed: %+v", record)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("status %q, want processing", record.Status)
	}
	if want := now.Add(domain.DefaultIdempotencyTTL); !record.TTLAt.Equal(want) {
		t.Fatalf("ttl %s, want %s", record.TTLAt, want)
	}

	if _, err := domain.NewProcessingRecord("", "hash", now, now); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("empty key: %v", err)
	}
	if _, err := domain.NewProcessingRecord("key", " ", now, now); !errors.Is(err, domain.ErrIdempotencyRequestHashRequired) {
		t.Fatalf("empty hash: %v", err)
	}
}

func TestIdempotencyRecordExpiredAndConflict(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := domain.IdempotencyRecord{Key: "k", RequestHash: "h", TTLAt: now}

	if !record.Expired(now) {
		t.Fatal("record with ttl == now must be expired")
	}
	if record.Expired(now.Add(-time.Second)) {
		t.Fatal("record must be live before ttl")
	}
	if err := record.Conflict("h"); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("same hash: %v", err)
	}
	if err := record.Conflict("other"); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("other hash: %v", err)
	}
}
