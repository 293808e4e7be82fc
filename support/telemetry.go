package support

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

func ConsoleExporter() (trace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func HoneycombExporter(ctx context.Context, team string, dataset string) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint("api.honeycomb.io:443"),
		otlptracegrpc.WithHeaders(map[string]string{
			"x-honeycomb-team":    team,
			"x-honeycomb-dataset": dataset,
		}),
		otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")),
	}

	client := otlptracegrpc.NewClient(opts...)
	return otlptrace.New(ctx, client)
}

func JaegerExporter(endpoint string) (*jaeger.Exporter, error) {
	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
}

func exporter(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	switch cfg.Traces {
	case ConsoleTraces:
		return ConsoleExporter()
	case HoneycombTraces:
		return HoneycombExporter(ctx, cfg.HoneycombTeam, cfg.HoneycombDataset)
	case JaegerTraces:
		return JaegerExporter(cfg.JaegerEndpoint)
	default:
		return nil, nil
	}
}

// Telemetry installs the global tracer provider for the configured exporter.
// The returned function flushes and stops it.
func Telemetry(ctx context.Context, cfg Config) (func(), error) {
	spans, err := exporter(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s exporter", cfg.Traces)
	}

	if spans == nil {
		return func() {}, nil
	}

	provider := trace.NewTracerProvider(trace.WithBatcher(spans))
	otel.SetTracerProvider(provider)

	return func() {
		_ = provider.Shutdown(context.Background())
	}, nil
}
