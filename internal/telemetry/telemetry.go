// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"librarian/internal/config"
)

// Shutdown flushes and stops what Setup started.
type Shutdown func(ctx context.Context) error

// Setup exports spans over OTLP/HTTP to cfg.OTLPEndpoint. Without an endpoint
// the global no-op provider stays in place.
func Setup(ctx context.Context, cfg config.Telemetry, version string) (Shutdown, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint)))
	if err != nil {
		return nil, err
	}

	provider := NewProvider(sdktrace.WithBatcher(exporter), cfg.ServiceName, version)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}

// NewProvider builds a tracer provider tagged with the service name and version.
func NewProvider(processor sdktrace.TracerProviderOption, serviceName, version string) *sdktrace.TracerProvider {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	// resource.Default may carry a different schema URL.
	if err != nil {
		res = resource.NewSchemaless(semconv.ServiceName(serviceName), semconv.ServiceVersion(version))
	}

	return sdktrace.NewTracerProvider(processor, sdktrace.WithResource(res))
}
