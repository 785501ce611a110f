package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/launchkitlabs/launchkit/internal/config"
)

// Telemetry owns the OTLP trace and metric pipelines and registers them as
// the process-wide providers. Without a configured endpoint the providers run
// exporter-less, so spans and measurements are dropped locally.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

func NewTelemetry(cfg config.Config, log *zap.Logger) (*Telemetry, error) {
	ctx := context.Background()

	name := cfg.Telemetry.ServiceName
	if name == "" {
		name = "launchkit"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(name)),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if endpoint := cfg.Telemetry.OTLPEndpoint; endpoint != "" {
		spanExporter, metricExporter, err := newExporters(ctx, cfg.Telemetry.OTLPProtocol, endpoint)
		if err != nil {
			return nil, err
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
		metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
		log.Named("observability").Info("otlp export enabled",
			zap.String("endpoint", endpoint),
			zap.String("protocol", cfg.Telemetry.OTLPProtocol))
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	mp := sdkmetric.NewMeterProvider(metricOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{
		Tracer: tp.Tracer(name),
		Meter:  mp.Meter(name),
		tp:     tp,
		mp:     mp,
	}, nil
}

func newExporters(ctx context.Context, protocol, endpoint string) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch protocol {
	case "http":
		spanExporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp http trace exporter: %w", err)
		}
		metricExporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp http metric exporter: %w", err)
		}
		return spanExporter, metricExporter, nil
	default:
		spanExporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp grpc trace exporter: %w", err)
		}
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp grpc metric exporter: %w", err)
		}
		return spanExporter, metricExporter, nil
	}
}

// TracerProvider exposes the SDK provider for plugins that take one directly.
func (t *Telemetry) TracerProvider() *sdktrace.TracerProvider {
	return t.tp
}

// Shutdown flushes pending spans and measurements.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.tp.Shutdown(ctx); err != nil {
		return err
	}
	return t.mp.Shutdown(ctx)
}
