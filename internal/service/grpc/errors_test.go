package grpcsvc

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestToStatus(t *testing.T) {
	logger := logrus.New().WithField("test", "status")

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"stock", domain.NewInsufficientStockError("p-1", 3, 1), codes.FailedPrecondition},
		{"wrapped stock", fmt.Errorf("check: %w", domain.NewInsufficientStockError("p-1", 3, 1)), codes.FailedPrecondition},
		{"cart not found", domain.ErrCartNotFound, codes.NotFound},
		{"order not found", fmt.Errorf("get: %w", domain.ErrOrderNotFound), codes.NotFound},
		{"product not found", domain.ErrProductNotFound, codes.NotFound},
		{"qty", domain.ErrItemQtyInvalid, codes.InvalidArgument},
		{"user", domain.ErrUserRequired, codes.InvalidArgument},
		{"unknown status", domain.ErrUnknownOrderStatus, codes.InvalidArgument},
		{"illegal transition", domain.ErrIllegalStatusTransition, codes.FailedPrecondition},
		{"negative price", domain.ErrItemPriceInvalid, codes.FailedPrecondition},
		{"cart conflict", domain.ErrCartVersionConflict, codes.Aborted},
		{"order conflict", domain.ErrOrderVersionConflict, codes.Aborted},
		{"exists", domain.ErrOrderAlreadyExists, codes.AlreadyExists},
		{"oracle timeout", domain.ErrOracleTimeout, codes.DeadlineExceeded},
		{"oracle down", domain.ErrOracleUnavailable, codes.Unavailable},
		{"status passthrough", status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
		{"other", fmt.Errorf("disk on fire"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(toStatus(logger, "test", tt.err))
			if got != tt.want {
				t.Fatalf("toStatus(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}

	if toStatus(logger, "test", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	if msg := status.Convert(toStatus(logger, "test", fmt.Errorf("secret dsn"))).Message(); msg != "internal error" {
		t.Fatalf("internal errors must be masked, got %q", msg)
	}
}

func TestDecodeIdempotencyFailure(t *testing.T) {
	record := domain.IdempotencyRecord{ResponseBody: []byte(`{"code":9,"message":"out of stock"}`)}
	st := status.Convert(decodeIdempotencyFailure(record))
	if st.Code() != codes.FailedPrecondition || st.Message() != "out of stock" {
		t.Fatalf("unexpected replay: %v", st)
	}

	st = status.Convert(decodeIdempotencyFailure(domain.IdempotencyRecord{StatusCode: int(codes.Unavailable)}))
	if st.Code() != codes.Unavailable {
		t.Fatalf("expected Unavailable from status code, got %v", st.Code())
	}

	st = status.Convert(decodeIdempotencyFailure(domain.IdempotencyRecord{StatusCode: 999}))
	if st.Code() != codes.Internal {
		t.Fatalf("expected Internal fallback, got %v", st.Code())
	}
}

func TestBuildIdempotencyRequestHash(t *testing.T) {
	a, err := buildIdempotencyRequestHash("/m", map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := buildIdempotencyRequestHash("/m", map[string]int{"a": 1})
	c, _ := buildIdempotencyRequestHash("/other", map[string]int{"a": 1})
	if a != b || a == c {
		t.Fatalf("hash must depend on method and payload only: %s %s %s", a, b, c)
	}
	if _, err := buildIdempotencyRequestHash("/m", nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}
