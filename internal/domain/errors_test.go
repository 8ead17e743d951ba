package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict error",
			err:  ErrOrderVersionConflict,
			want: true,
		},
		{
			name: "wrapped version conflict error",
			err:  errors.Join(ErrOrderVersionConflict, errors.New("additional context")),
			want: true,
		},
		{
			name: "cart version conflict",
			err:  fmt.Errorf("save cart: %w", ErrCartVersionConflict),
			want: true,
		},
		{
			name: "other error",
			err:  ErrOrderNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVersionConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "idempotency already exists",
			err:  ErrIdempotencyKeyAlreadyExists,
			want: true,
		},
		{
			name: "idempotency hash mismatch",
			err:  ErrIdempotencyHashMismatch,
			want: true,
		},
		{
			name: "wrapped idempotency conflict",
			err:  errors.Join(ErrIdempotencyHashMismatch, errors.New("extra context")),
			want: true,
		},
		{
			name: "non idempotency error",
			err:  ErrOrderVersionConflict,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsIdempotencyConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsufficientStockError(t *testing.T) {
	err := fmt.Errorf("add item: %w", NewInsufficientStockError("p-1", 20, 10))

	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected errors.Is(err, ErrInsufficientStock)")
	}
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected *InsufficientStockError in chain")
	}
	if stockErr.ProductID != "p-1" || stockErr.Requested != 20 || stockErr.Available != 10 {
		t.Fatalf("unexpected details %+v", stockErr)
	}
	if errors.Is(err, ErrProductNotFound) {
		t.Fatalf("insufficient stock must not match other sentinels")
	}
}

func TestIsOracleFailure(t *testing.T) {
	if !IsOracleFailure(fmt.Errorf("check: %w", ErrOracleTimeout)) {
		t.Fatalf("timeout is an oracle failure")
	}
	if !IsOracleFailure(ErrOracleUnavailable) {
		t.Fatalf("unavailable is an oracle failure")
	}
	if IsOracleFailure(ErrInsufficientStock) {
		t.Fatalf("business answer is not an oracle failure")
	}
}
