package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/traveldata/hotel-exporter/config"
	"github.com/traveldata/hotel-exporter/internal/app"
	"github.com/traveldata/hotel-exporter/internal/model"
	logging "github.com/traveldata/hotel-exporter/internal/otel"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func main() {

	// Load configuration
	config, appErr := conf.LoadConfig()
	if appErr != nil {
		slog.Error("hotel_exporter.main.configuration_error", slog.String("error", appErr.Error()))
		os.Exit(1)
	}

	// slog + OTEL
	service := resource.NewSchemaless(
		semconv.ServiceName(model.AppServiceName),
		semconv.ServiceVersion(model.CurrentVersion),
		semconv.ServiceInstanceID(config.Consul.Id),
		semconv.ServiceNamespace(model.NamespaceName),
	)
	shutdown := logging.Setup(service)

	// Initialize the application
	application, appErr := app.New(config, shutdown)
	if appErr != nil {
		slog.Error("hotel_exporter.main.application_initialization_error", slog.String("error", appErr.Error()))
		os.Exit(1)
	}

	// Initialize signal handling for graceful shutdown
	initSignals(application)

	// Log the configuration
	slog.Debug("hotel_exporter.main.configuration_loaded",
		slog.String("consul", config.Consul.Address),
		slog.String("consul_id", config.Consul.Id),
		slog.String("storage_path", config.Export.StoragePath),
	)

	// Start the application
	slog.Info("hotel_exporter.main.starting_application")
	startErr := application.Start(context.Background())
	if startErr != nil {
		slog.Error("hotel_exporter.main.application_start_error", slog.String("error", startErr.Error()))
		os.Exit(1)
	}
	slog.Info("hotel_exporter.main.application_started_successfully")
}

func initSignals(application *app.App) {
	slog.Info("hotel_exporter.main.initializing_stop_signals", slog.String("main", "initializing_stop_signals"))
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch)

	go func() {
		for {
			s := <-sigch
			handleSignals(s, application)
		}
	}()
}

func handleSignals(signal os.Signal, application *app.App) {
	if signal == syscall.SIGTERM || signal == syscall.SIGINT {
		err := application.Stop()
		if err != nil {
			return
		}
		slog.Info(
			"hotel_exporter.main.received_kill_signal",
			slog.String(
				"signal",
				signal.String(),
			),
			slog.String(
				"status",
				"service gracefully stopped",
			),
		)
		os.Exit(0)
	}
}
