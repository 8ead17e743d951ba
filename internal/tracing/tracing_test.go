package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStampOutboxAndExtract(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	msgs := []domain.OutboxMessage{{ID: "m-1"}, {ID: "m-2", Headers: map[string]string{"x": "y"}}}
	StampOutbox(ctx, msgs)

	for _, msg := range msgs {
		if msg.Headers["traceparent"] == "" {
			t.Fatalf("expected traceparent header on %s", msg.ID)
		}
	}
	if msgs[1].Headers["x"] != "y" {
		t.Fatal("existing headers must be kept")
	}

	restored := Extract(context.Background(), msgs[0].Headers)
	got := trace.SpanContextFromContext(restored)
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id mismatch: %s vs %s", got.TraceID(), span.SpanContext().TraceID())
	}
}

func TestStampOutbox_WithoutSpanLeavesHeadersNil(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	msgs := []domain.OutboxMessage{{ID: "m-1"}}
	StampOutbox(context.Background(), msgs)
	if msgs[0].Headers != nil {
		t.Fatalf("expected nil headers, got %v", msgs[0].Headers)
	}
}
