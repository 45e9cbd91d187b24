package cache

import (
	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
)

var (
	// ErrQueueEmpty signals an idle poll timeout, not a failure.
	ErrQueueEmpty = errors.New("queue empty (timeout)",
		errors.WithID("exporter.cache.queue_empty"))
	// ErrQueueFull is the back-pressure signal returned to producers.
	ErrQueueFull = errors.New("export queue is full",
		errors.WithID("exporter.cache.queue_full"))
)

// Queue is the pending-task channel between the caller-facing service and
// the worker pool. It only carries job pointers; the store owns job state.
type Queue interface {
	// PushExportTask enqueues a task. ErrQueueFull is returned when the
	// configured depth is reached so callers see back-pressure instead of
	// unbounded accumulation.
	PushExportTask(task model.ExportTask) error
	// PopExportTask blocks for a short interval and returns ErrQueueEmpty
	// when nothing arrived.
	PopExportTask() (model.ExportTask, error)
	Len() (int64, error)

	// Clear drops all queued tasks. Test support only.
	Clear() error
}
