package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/traveldata/hotel-exporter/internal/storage"
	"github.com/traveldata/hotel-exporter/internal/store"
)

// Cleaner reclaims export output past its retention deadline. It only ever
// touches jobs already in a terminal state, so it is safe to run while the
// worker pool is active.
type Cleaner struct {
	jobs    store.ExportJobStore
	storage *storage.Manager
}

func NewCleaner(jobs store.ExportJobStore, manager *storage.Manager) *Cleaner {
	return &Cleaner{jobs: jobs, storage: manager}
}

// CleanupExpiredFiles deletes the output of completed jobs whose completed_at
// is strictly older than now-retention and clears their file pointers. Jobs
// are processed independently: one failed deletion never aborts the batch.
func (c *Cleaner) CleanupExpiredFiles(ctx context.Context, retention time.Duration) (deleted, failed int) {
	cutoff := time.Now().UTC().Add(-retention)
	jobs, err := c.jobs.ListExpiredCompleted(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "list expired completed jobs failed", "error", err)
		return 0, 0
	}

	for _, job := range jobs {
		if job.FilePath == nil {
			continue
		}
		path := *job.FilePath
		removed := c.storage.Delete(path)
		if !removed {
			if _, exists := c.storage.FileSize(path); exists {
				// File is still there and undeletable; keep the pointer so a
				// later run retries.
				slog.WarnContext(ctx, "expired export file not deleted",
					"jobID", job.ID, "path", path)
				failed++
				continue
			}
			// Already gone: clear the dangling pointer below.
		}
		if err := c.jobs.ClearFilePath(ctx, job.ID, time.Now().UTC()); err != nil {
			slog.ErrorContext(ctx, "clear file path failed",
				"jobID", job.ID, "error", err)
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

// CleanupFailedExports removes partial output of jobs that failed longer than
// age ago. Failed jobs never record file_path, so files are matched by the
// deterministic job-id prefix.
func (c *Cleaner) CleanupFailedExports(ctx context.Context, age time.Duration) (deleted, failed int) {
	cutoff := time.Now().UTC().Add(-age)
	jobs, err := c.jobs.ListStaleFailed(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "list stale failed jobs failed", "error", err)
		return 0, 0
	}

	for _, job := range jobs {
		removed, undeletable := c.storage.RemoveJobFiles(job.UserID, job.ExportType, job.ID)
		if removed > 0 {
			slog.InfoContext(ctx, "removed partial export output",
				"jobID", job.ID, "files", removed)
		}
		if undeletable > 0 {
			slog.WarnContext(ctx, "partial export output not deleted",
				"jobID", job.ID, "files", undeletable)
		}
		deleted += removed
		failed += undeletable
	}
	return deleted, failed
}

// RunRetentionCleanup is the entry point of the cleanup CLI. Dry-run mode
// reports what would be reclaimed and performs no mutation.
func (c *Cleaner) RunRetentionCleanup(ctx context.Context, retention, failedAge time.Duration, dryRun bool) error {
	before := c.storage.Stats()
	slog.InfoContext(ctx, "storage stats",
		"files", before.FileCount,
		"bytes", before.TotalBytes,
		"oldest", before.OldestFile,
		"newest", before.NewestFile)

	if dryRun {
		expired, err := c.jobs.ListExpiredCompleted(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			return err
		}
		stale, err := c.jobs.ListStaleFailed(ctx, time.Now().UTC().Add(-failedAge))
		if err != nil {
			return err
		}
		counts, err := c.jobs.CountByStatus(ctx)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "dry run, nothing deleted",
			"expired_completed", len(expired),
			"stale_failed", len(stale),
			"jobs_by_status", counts)
		return nil
	}

	expiredDeleted, expiredFailed := c.CleanupExpiredFiles(ctx, retention)
	failedDeleted, failedFailed := c.CleanupFailedExports(ctx, failedAge)

	after := c.storage.Stats()
	slog.InfoContext(ctx, "retention cleanup finished",
		"expired_deleted", expiredDeleted,
		"expired_failed", expiredFailed,
		"partial_deleted", failedDeleted,
		"partial_failed", failedFailed,
		"files_remaining", after.FileCount,
		"bytes_freed", before.TotalBytes-after.TotalBytes)
	return nil
}
