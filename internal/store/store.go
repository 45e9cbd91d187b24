package store

import (
	"context"
	"time"

	"github.com/traveldata/hotel-exporter/internal/model"
)

type Store interface {
	ExportJob() ExportJobStore

	// ------------ Database Management ------------ //
	Open() error  // Return custom DB error
	Close() error // Return custom DB error
}

// ExportJobStore persists the job records. Claim is the only operation with
// special semantics: it must be atomic so that at most one worker ever moves
// a given job out of pending.
type ExportJobStore interface {
	Create(ctx context.Context, job *model.ExportJob) error
	Get(ctx context.Context, id string) (*model.ExportJob, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error)

	// Claim conditionally moves a pending job to processing and stamps
	// started_at. claimed=false means another worker won the race; that is
	// an expected outcome, not an error.
	Claim(ctx context.Context, id string) (job *model.ExportJob, claimed bool, err error)

	UpdateProgress(ctx context.Context, id string, processed, total int64, percentage int32) error
	MarkCompleted(ctx context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error
	MarkFailed(ctx context.Context, id, errorMessage string, completedAt time.Time) error

	// Cleanup support. ClearFilePath nulls the file pointer without touching
	// status; it is the administrative exception to terminal-state immutability.
	ListExpiredCompleted(ctx context.Context, cutoff time.Time) ([]*model.ExportJob, error)
	ListStaleFailed(ctx context.Context, cutoff time.Time) ([]*model.ExportJob, error)
	ClearFilePath(ctx context.Context, id string, expiresAt time.Time) error

	CountByStatus(ctx context.Context) (map[model.ExportStatus]int64, error)
}
