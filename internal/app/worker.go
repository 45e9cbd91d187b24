package app

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/traveldata/hotel-exporter/internal/cache"
	"github.com/traveldata/hotel-exporter/internal/errors"
	"golang.org/x/sync/errgroup"
)

// StartExportWorkers launches background workers to process export tasks
// concurrently. If too many workers are configured, the number is
// automatically limited based on available CPU cores.
func (app *App) StartExportWorkers(ctx context.Context) {
	numWorkers := app.Config.Export.Workers
	if numWorkers <= 0 {
		numWorkers = 3
	}

	maxWorkers := runtime.NumCPU() * 2
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}

	slog.InfoContext(ctx, "starting export workers", "count", numWorkers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		workerID := i + 1
		g.Go(func() error {
			app.runWorker(ctx, workerID)
			return nil
		})
	}
	go func() {
		err := g.Wait()
		slog.Info("export workers stopped")
		// Unblocks Start once the pool is gone, whether from Stop cancelling
		// the context or from a worker failing fatally.
		if app.exitCh != nil {
			app.exitCh <- err
		}
	}()
}

func (app *App) runWorker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			task, err := app.Queue.PopExportTask()
			if err != nil {
				if !errors.Is(err, cache.ErrQueueEmpty) {
					slog.ErrorContext(ctx, "pop export task failed",
						"workerID", workerID, "error", err)
					time.Sleep(time.Second)
				}
				continue
			}

			if err := app.HandleExportTask(ctx, workerID, task); err != nil {
				slog.ErrorContext(ctx, "export task failed",
					"workerID", workerID,
					"jobID", task.JobID,
					"error", err)
			}
		}
	}
}
