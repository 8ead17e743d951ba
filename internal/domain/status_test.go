package domain_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    domain.OrderStatus
		wantErr bool
	}{
		{raw: "Delivered", want: domain.OrderStatusDelivered},
		{raw: "pending", want: domain.OrderStatusPending},
		{raw: " PAID ", want: domain.OrderStatusPaid},
		{raw: "Canceled", want: domain.OrderStatusCancelled},
		{raw: "cancelled", want: domain.OrderStatusCancelled},
		{raw: "shipped", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := domain.ParseOrderStatus(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrUnknownOrderStatus) {
					t.Fatalf("expected ErrUnknownOrderStatus, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseOrderStatus(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestTransitionPolicyPermissiveAllowsAnything(t *testing.T) {
	policy := domain.TransitionPolicyPermissive
	if !policy.Allows(domain.OrderStatusDelivered, domain.OrderStatusPending) {
		t.Fatalf("permissive policy must allow delivered -> pending")
	}
	if err := policy.Check(domain.OrderStatusCancelled, domain.OrderStatusPaid); err != nil {
		t.Fatalf("permissive policy returned %v", err)
	}
}

func TestTransitionPolicyStrict(t *testing.T) {
	policy := domain.TransitionPolicyStrict
	tests := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{from: domain.OrderStatusPending, to: domain.OrderStatusConfirmed, want: true},
		{from: domain.OrderStatusPending, to: domain.OrderStatusCancelled, want: true},
		{from: domain.OrderStatusPending, to: domain.OrderStatusPaid, want: false},
		{from: domain.OrderStatusConfirmed, to: domain.OrderStatusPaid, want: true},
		{from: domain.OrderStatusPaid, to: domain.OrderStatusDelivered, want: true},
		{from: domain.OrderStatusDelivered, to: domain.OrderStatusPending, want: false},
		{from: domain.OrderStatusCancelled, to: domain.OrderStatusPending, want: false},
		{from: domain.OrderStatusDelivered, to: domain.OrderStatusDelivered, want: true},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := policy.Allows(tc.from, tc.to); got != tc.want {
				t.Fatalf("Allows(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
			err := policy.Check(tc.from, tc.to)
			if tc.want && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tc.want && !errors.Is(err, domain.ErrIllegalStatusTransition) {
				t.Fatalf("expected ErrIllegalStatusTransition, got %v", err)
			}
		})
	}
}

func TestParseTransitionPolicy(t *testing.T) {
	if p, err := domain.ParseTransitionPolicy(""); err != nil || p != domain.TransitionPolicyPermissive {
		t.Fatalf("empty policy = %q, %v", p, err)
	}
	if p, err := domain.ParseTransitionPolicy("STRICT"); err != nil || p != domain.TransitionPolicyStrict {
		t.Fatalf("strict policy = %q, %v", p, err)
	}
	if _, err := domain.ParseTransitionPolicy("lenient"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
