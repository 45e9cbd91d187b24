package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/traveldata/hotel-exporter/internal/model"
)

const finalizeTimeout = 10 * time.Second

// HandleExportTask claims the job behind a queued task and runs the export.
// A lost claim race is a silent skip: another worker owns the job.
func (app *App) HandleExportTask(ctx context.Context, workerID int, task model.ExportTask) error {
	job, claimed, err := app.Store.ExportJob().Claim(ctx, task.JobID)
	if err != nil {
		return err
	}
	if !claimed {
		slog.DebugContext(ctx, "job already claimed, skipping",
			"workerID", workerID, "jobID", task.JobID)
		return nil
	}
	return app.executeJob(ctx, job)
}

// executeJob runs one claimed export and guarantees finalization: whatever
// happens inside the export, including a panic, the job leaves processing.
func (app *App) executeJob(ctx context.Context, job *model.ExportJob) error {
	if timeout := app.Config.Export.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("export panicked: %v", r)
			}
		}()
		return app.runExport(ctx, job)
	}()

	if execErr != nil {
		app.finalizeFailed(job, execErr)
		return execErr
	}
	return nil
}

func (app *App) runExport(ctx context.Context, job *model.ExportJob) error {
	jobs := app.Store.ExportJob()

	ds, err := app.source.Rows(ctx, job.ExportType, job.Filters)
	if err != nil {
		return fmt.Errorf("data source failed: %w", err)
	}

	total := int64(len(ds.Records))
	// Best-effort progress, never load-bearing.
	_ = jobs.UpdateProgress(ctx, job.ID, 0, total, 10)

	renderer, err := app.Renderers.Renderer(job.Format)
	if err != nil {
		return err
	}
	data, err := renderer.Render(ds)
	if err != nil {
		return fmt.Errorf("render %s failed: %w", job.Format, err)
	}
	_ = jobs.UpdateProgress(ctx, job.ID, total, total, 75)

	path, err := app.Storage.FilePath(job.ID, job.ExportType, job.Format, time.Now().UTC(), job.UserID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	app.Storage.HardenFile(path)

	size, ok := app.Storage.FileSize(path)
	if !ok {
		return fmt.Errorf("export file vanished after write: %s", path)
	}

	completedAt := time.Now().UTC()
	expiresAt := completedAt.Add(app.Config.Export.Retention())
	if err := jobs.MarkCompleted(ctx, job.ID, path, size, completedAt, expiresAt); err != nil {
		return err
	}

	slog.InfoContext(ctx, "export completed",
		"jobID", job.ID,
		"exportType", job.ExportType,
		"format", job.Format,
		"records", total,
		"bytes", size)

	if err := app.notifier.ExportCompleted(ctx, job.UserID, job.ID, job.ExportType, path); err != nil {
		// The export itself succeeded; notification loss is logged only.
		slog.WarnContext(ctx, "completion notification failed",
			"jobID", job.ID, "error", err)
	}
	return nil
}

// finalizeFailed moves the job to failed on a fresh context so that worker
// cancellation or a job timeout cannot leave it stuck in processing. Any
// partial output file stays on disk for the failed-export cleanup pass.
func (app *App) finalizeFailed(job *model.ExportJob, execErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := app.Store.ExportJob().MarkFailed(ctx, job.ID, execErr.Error(), time.Now().UTC()); err != nil {
		slog.Error("failed to finalize job as failed",
			"jobID", job.ID, "error", err)
	}
}
