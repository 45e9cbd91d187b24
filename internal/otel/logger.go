package logging

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup initializes structured logging and the OpenTelemetry tracer provider
// and returns a shutdown function.
func Setup(service *resource.Resource) func(context.Context) error {
	// Retrieve log level from the environment, default to info
	var verbose slog.LevelVar
	verbose.Set(slog.LevelInfo)
	if input := os.Getenv("LOG_LEVEL"); input != "" {
		_ = verbose.UnmarshalText([]byte(input))
	}

	stdlog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &verbose,
	}))
	slog.SetDefault(stdlog)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(service),
	}
	// Span export to stdout is opt-in; the provider alone still feeds the
	// pgx instrumentation with trace context.
	if os.Getenv("OTEL_TRACES_STDOUT") != "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			stdlog.Error("OpenTelemetry setup failed", "error", err)
			os.Exit(1)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	stdlog.Info("telemetry setup successful")

	return tp.Shutdown
}
