// Package tracing настраивает OpenTelemetry и переносит контекст трассировки через outbox и Kafka.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Config описывает экспорт трасс.
type Config struct {
	// Endpoint: host:port OTLP/HTTP-коллектора. Пустое значение отключает экспорт.
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
}

// Setup устанавливает глобальный propagator и, если задан Endpoint, провайдер трасс с
// OTLP/HTTP-экспортёром. Возвращаемый shutdown безопасно вызывать всегда.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil && !errors.Is(err, resource.ErrSchemaURLConflict) {
		return noop, fmt.Errorf("create otel resource: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, fmt.Errorf("create otlp trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Inject возвращает заголовки W3C trace context текущего span.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	return carrier
}

// Extract восстанавливает контекст трассировки из заголовков.
func Extract(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

// StampOutbox дописывает контекст трассировки в заголовки сообщений outbox.
func StampOutbox(ctx context.Context, msgs []domain.OutboxMessage) {
	headers := Inject(ctx)
	if len(headers) == 0 {
		return
	}
	for i := range msgs {
		if msgs[i].Headers == nil {
			msgs[i].Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			msgs[i].Headers[k] = v
		}
	}
}
