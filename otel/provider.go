package otel

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultServiceName is reported as service.name when none is configured.
const DefaultServiceName = "storefront"

// ProviderConfig configures the tracer and meter providers.
type ProviderConfig struct {
	// Endpoint is an OTLP/HTTP traces URL such as
	// "http://localhost:4318/v1/traces". Empty keeps spans in-process.
	Endpoint string

	// ServiceName is reported as service.name (default "storefront").
	ServiceName string
}

func (c ProviderConfig) resource() *resource.Resource {
	name := c.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	return resource.NewSchemaless(attribute.String("service.name", name))
}

// NewTracerProvider builds a tracer provider. With an endpoint configured,
// spans are batched to it over OTLP/HTTP; otherwise they are recorded and
// dropped. Callers must Shutdown the provider to flush.
func NewTracerProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(cfg.resource())}
	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("otel: create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// NewMeterProvider builds a meter provider read on demand through the
// returned reader.
func NewMeterProvider(cfg ProviderConfig) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(cfg.resource()),
		sdkmetric.WithReader(reader),
	)
	return mp, reader
}

// LogMetrics collects the reader once and logs every counter data point at
// debug level.
func LogMetrics(ctx context.Context, reader *sdkmetric.ManualReader, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("otel: collect metrics: %w", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := []any{"metric", m.Name, "value", dp.Value}
				for _, kv := range dp.Attributes.ToSlice() {
					attrs = append(attrs, string(kv.Key), kv.Value.Emit())
				}
				logger.DebugContext(ctx, "metric", attrs...)
			}
		}
	}
	return nil
}
