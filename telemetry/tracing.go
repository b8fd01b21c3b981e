// Package telemetry sets up OpenTelemetry tracing for the gateway.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type TracerOption func(t *tracer)

// WithOTLPEndpoint sets the host:port of the OTLP/HTTP collector. When unset
// the exporter follows the OTEL_EXPORTER_OTLP_* environment variables.
func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(t *tracer) {
		t.endpoint = endpoint
	}
}

func WithServiceName(serviceName string) TracerOption {
	return func(t *tracer) {
		t.serviceName = serviceName
	}
}

func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(t *tracer) {
		t.samplingRatio = samplingRatio
	}
}

type tracer struct {
	endpoint      string
	serviceName   string
	samplingRatio float64
}

// NewTracerProvider creates a tracer provider exporting over OTLP/HTTP and
// installs it, together with W3C trace context propagation, as the global
// provider. Callers must Shutdown it to flush pending spans.
func NewTracerProvider(ctx context.Context, opts ...TracerOption) (*sdktrace.TracerProvider, error) {
	t := &tracer{
		serviceName:   "stitching-gateway",
		samplingRatio: 1,
	}
	for _, opt := range opts {
		opt(t)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", t.serviceName),
		))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	var exporterOpts []otlptracehttp.Option
	if t.endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(t.endpoint), otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create the otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.samplingRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)

	return tp, nil
}
