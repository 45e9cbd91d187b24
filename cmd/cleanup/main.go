package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	conf "github.com/traveldata/hotel-exporter/config"
	"github.com/traveldata/hotel-exporter/internal/app"
	"github.com/traveldata/hotel-exporter/internal/storage"
	"github.com/traveldata/hotel-exporter/internal/store/postgres"
)

// Out-of-band retention cleanup, meant to be run from cron. Exit code 0 on
// success, non-zero on any unhandled error.
func main() {
	retentionHours := pflag.Int("retention-hours", 24, "Hours a completed export file is kept")
	failedAgeHours := pflag.Int("failed-age-hours", 1, "Hours before a failed export's partial files are removed")
	dryRun := pflag.Bool("dry-run", false, "Report what would be reclaimed without deleting anything")
	dataSource := pflag.String("data-source", "", "Data source")
	storagePath := pflag.String("storage-path", "/var/lib/hotel-exporter/exports", "Export output base directory")
	pflag.Parse()

	_ = viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	_ = viper.BindEnv("data-source", "DATA_SOURCE")
	_ = viper.BindEnv("storage-path", "EXPORT_STORAGE_PATH")

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	url := viper.GetString("data-source")
	if url == "" {
		url = *dataSource
	}
	if url == "" {
		slog.Error("cleanup.configuration_error", slog.String("error", "data source is required"))
		os.Exit(1)
	}
	base := viper.GetString("storage-path")
	if base == "" {
		base = *storagePath
	}

	store := postgres.New(&conf.DatabaseConfig{Url: url})
	if err := store.Open(); err != nil {
		slog.Error("cleanup.store_open_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	manager, err := storage.NewManager(base)
	if err != nil {
		slog.Error("cleanup.storage_init_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cleaner := app.NewCleaner(store.ExportJob(), manager)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	retention := time.Duration(*retentionHours) * time.Hour
	failedAge := time.Duration(*failedAgeHours) * time.Hour
	if err := cleaner.RunRetentionCleanup(ctx, retention, failedAge, *dryRun); err != nil {
		slog.Error("cleanup.run_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
