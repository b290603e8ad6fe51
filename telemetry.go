package sdk

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider creates a TracerProvider that exports spans through
// the given exporter.
//
// The provider uses a SimpleSpanProcessor for immediate export without
// batching, so attempt spans reach the backend as soon as they complete.
// The host supplies the exporter (OTLP, stdout, an in-memory recorder for
// tests); wire the resulting tracer into the pipeline with WithTracer.
func NewTracerProvider(exporter sdktrace.SpanExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	if logger == nil {
		logger = slog.Default()
	}

	processor := sdktrace.NewSimpleSpanProcessor(exporter)

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("lorekeep-sdk"),
		),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
	)
}

// NewTracer creates a tracer from the provider under the standard name.
func NewTracer(tp *sdktrace.TracerProvider) trace.Tracer {
	return tp.Tracer("lorekeep-sdk")
}
