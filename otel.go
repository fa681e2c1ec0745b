package hubgen

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const TracerName = "hubgen-runner"

// OtelConfig is a configuration struct for the OpenTelemetry providers.
type OtelConfig struct {
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=set-me"`
	Headers        string `env:"OTEL_EXPORTER_OTLP_HEADERS,default=set-me"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION,default=0.1.0"`
	ServiceName    string `env:"OTEL_SERVICE_NAME,default=hubgen"`
	DeployEnv      string `env:"OTEL_DEPLOY_ENV,default=development"`
}

type OtelShutdown func(ctx context.Context) error

// Telemetry bundles the tracer and meter handed to the runner.
type Telemetry struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	Shutdown OtelShutdown
}

// NoopTelemetry returns a tracer and meter that record nothing.
func NoopTelemetry() Telemetry {
	return Telemetry{
		Tracer:   tracenoop.NewTracerProvider().Tracer(TracerName),
		Meter:    metricnoop.NewMeterProvider().Meter(TracerName),
		Shutdown: func(context.Context) error { return nil },
	}
}

// InitOtel initializes the OpenTelemetry SDK with OTLP gRPC exporters and
// registers the global providers.
func InitOtel(ctx context.Context) (Telemetry, error) {
	var cfg OtelConfig
	if err := LoadConfig(&cfg); err != nil {
		return Telemetry{}, err
	}

	// Configure a new OTLP trace exporter using environment variables for sending data over gRPC
	traceExporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient())
	if err != nil {
		return Telemetry{}, err
	}

	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	shutdown := func(ctx context.Context) error {
		err := errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)

		if err != nil && err.Error() == "gRPC exporter is shutdown" {
			return nil
		}

		return err
	}

	return Telemetry{
		Tracer:   tracerProvider.Tracer(TracerName),
		Meter:    meterProvider.Meter(TracerName),
		Shutdown: shutdown,
	}, nil
}
