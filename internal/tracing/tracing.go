// Package tracing wires OpenTelemetry distributed tracing for the Data
// Hub's transport layer: an OTLP HTTP exporter behind an endpoint switch,
// a batching SDK tracer provider installed as the process-wide default,
// and a couple of context helpers the HTTP middleware uses to stamp
// responses with a trace ID.
//
// The resource-tree core itself (internal/tree, internal/push, ...) is not
// instrumented: it runs as a single synchronous call per API operation, so
// the HTTP/WebSocket span already bounds it end to end.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = noop()

func noop() trace.Tracer {
	return otel.Tracer("datahub-noop")
}

// Init wires up the OTLP HTTP exporter when endpoint is non-empty; an empty
// endpoint leaves tracing a no-op, for desktop/offline deployments of the
// gateway where no collector is reachable. Returns a shutdown function
// that must be called on exit.
func Init(serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	tracer = otel.Tracer(serviceName)
	return tp.Shutdown, nil
}

// Tracer returns the process-wide tracer, a no-op until Init runs.
func Tracer() trace.Tracer { return tracer }

// StartSpan starts a span named name under ctx using the process tracer.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// TraceIDFromContext extracts the active span's trace ID, or "" if ctx
// carries no valid span (tracing disabled, or called outside a span).
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
