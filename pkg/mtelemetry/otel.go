// Package mtelemetry wires distributed tracing via the OpenTelemetry SDK,
// exported over OTLP/gRPC, so a trace id threads through every stage a
// sub-transaction passes through (marshaller → indexer → catalog →
// transfer/archive → monitor), simplified from the teacher's telemetry
// setup by dropping the log-provider bridge: structured logs here flow
// through zap directly (see pkg/mzap), not through an otel log exporter,
// since NLDS has no need for a second logging transport alongside zap's
// existing JSON/console encoders.
package mtelemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer provider for one component process.
type Telemetry struct {
	ServiceName string
	CollectorEndpoint string

	provider *sdktrace.TracerProvider
}

// Init builds and registers the global tracer provider, exporting spans to
// CollectorEndpoint over OTLP/gRPC.
func (t *Telemetry) Init(ctx context.Context) (func(context.Context) error, error) {
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(t.CollectorEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("mtelemetry: otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(t.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("mtelemetry: resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	t.provider = provider

	return provider.Shutdown, nil
}

// Tracer returns a named tracer from the registered provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
