package app

import (
	"context"
	"log/slog"

	cfg "github.com/traveldata/hotel-exporter/config"
	"github.com/traveldata/hotel-exporter/internal/cache"
	rediscache "github.com/traveldata/hotel-exporter/internal/cache/redis"
	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/export"
	"github.com/traveldata/hotel-exporter/internal/notify"
	"github.com/traveldata/hotel-exporter/internal/storage"
	"github.com/traveldata/hotel-exporter/internal/store"
	"github.com/traveldata/hotel-exporter/internal/store/postgres"
	"github.com/traveldata/hotel-exporter/registry"
	"github.com/traveldata/hotel-exporter/registry/consul"
)

type App struct {
	Config   *cfg.AppConfig
	exitCh   chan error
	shutdown func(ctx context.Context) error

	Store     store.Store
	pgStore   *postgres.Store
	Queue     cache.Queue
	Storage   *storage.Manager
	Renderers *export.Registry

	source   export.DataSource
	notifier export.Notifier
	registry registry.ServiceRegistrator

	cancelWorkers context.CancelFunc
}

// New creates a fully initialized App.
func New(config *cfg.AppConfig, shutdown func(ctx context.Context) error) (*App, error) {
	app := &App{
		Config:    config,
		shutdown:  shutdown,
		exitCh:    make(chan error, 1),
		Renderers: export.NewRegistry(),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initQueue(); err != nil {
		return nil, err
	}
	if err := app.initStorage(); err != nil {
		return nil, err
	}
	if err := app.initRegistry(); err != nil {
		return nil, err
	}
	app.notifier = notify.NewRedisNotifier(
		config.Redis.Addr, config.Redis.Password, config.Redis.DB)

	return app, nil
}

// --------- Private init methods ---------

func (app *App) initStore() error {
	if app.Config.Database == nil {
		return errors.New("database config is nil")
	}
	app.pgStore = postgres.New(app.Config.Database)
	app.Store = app.pgStore
	return nil
}

func (app *App) initQueue() error {
	queue, err := rediscache.NewRedisQueue(
		app.Config.Redis.Addr,
		app.Config.Redis.Password,
		app.Config.Redis.DB,
		app.Config.Export.QueueSize,
	)
	if err != nil {
		return errors.New("unable to initialize Redis queue", errors.WithCause(err))
	}
	app.Queue = queue
	return nil
}

func (app *App) initStorage() error {
	manager, err := storage.NewManager(app.Config.Export.StoragePath)
	if err != nil {
		// Fatal: nothing can be exported without a writable output tree.
		return err
	}
	app.Storage = manager
	return nil
}

func (app *App) initRegistry() error {
	reg, err := consul.NewConsulRegistry(app.Config.Consul)
	if err != nil {
		return errors.New("failed to init consul registry", errors.WithCause(err))
	}
	app.registry = reg
	return nil
}

// Start opens the store, registers the service and launches the worker pool.
// It blocks until the worker pool stops, either from Stop or from a fatal
// worker error.
func (app *App) Start(ctx context.Context) error {
	if err := app.Store.Open(); err != nil {
		return errors.New("failed to open store", errors.WithCause(err))
	}

	pool, err := app.pgStore.Database()
	if err != nil {
		return errors.New("store opened without a connection", errors.WithCause(err))
	}
	app.source = export.NewPgDataSource(pool)

	if err := app.registry.Register(); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	app.cancelWorkers = cancel
	app.StartExportWorkers(workerCtx)

	return <-app.exitCh
}

// Stop gracefully shuts down all services
func (app *App) Stop() error {
	slog.Info("hotel_exporter.main.stop_starting")

	if app.cancelWorkers != nil {
		app.cancelWorkers()
	}

	if app.registry != nil {
		if err := app.registry.Deregister(); err != nil {
			slog.Error("consul deregister error", "err", err)
		}
	}

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("store close error", "err", err)
		} else {
			slog.Info("store closed")
		}
	}

	if app.shutdown != nil {
		if err := app.shutdown(context.Background()); err != nil {
			slog.Error("shutdown hook error", "err", err)
		} else {
			slog.Info("shutdown hook executed")
		}
	}

	slog.Info("hotel_exporter.main.stop_complete")
	return nil
}
