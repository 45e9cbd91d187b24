package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/traveldata/hotel-exporter/internal/cache"
	"github.com/traveldata/hotel-exporter/internal/export"
	"github.com/traveldata/hotel-exporter/internal/model"
	"github.com/traveldata/hotel-exporter/internal/store"
)

// memStore is an in-memory ExportJobStore with the same claim atomicity the
// postgres conditional update provides.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*model.ExportJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*model.ExportJob)}
}

func (m *memStore) ExportJob() store.ExportJobStore { return m }
func (m *memStore) Open() error                     { return nil }
func (m *memStore) Close() error                    { return nil }

func (m *memStore) put(job *model.ExportJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
}

func (m *memStore) Create(_ context.Context, job *model.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("duplicate job id %s", job.ID)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*model.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("no export job found for id=%s", id)
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) ListByUser(_ context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ExportJob
	for _, job := range m.jobs {
		if job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) Claim(_ context.Context, id string) (*model.ExportJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != model.ExportStatusPending {
		return nil, false, nil
	}
	now := time.Now().UTC()
	job.Status = model.ExportStatusProcessing
	job.StartedAt = &now
	cp := *job
	return &cp, true, nil
}

func (m *memStore) UpdateProgress(_ context.Context, id string, processed, total int64, percentage int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == model.ExportStatusProcessing {
		job.ProcessedRecords = processed
		job.TotalRecords = total
		job.ProgressPercentage = percentage
	}
	return nil
}

func (m *memStore) MarkCompleted(_ context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != model.ExportStatusProcessing {
		return fmt.Errorf("no processing export job found for id=%s", id)
	}
	job.Status = model.ExportStatusCompleted
	job.FilePath = &filePath
	job.FileSizeBytes = &fileSize
	job.CompletedAt = &completedAt
	job.ExpiresAt = &expiresAt
	job.ProgressPercentage = 100
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id, errorMessage string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != model.ExportStatusProcessing {
		return fmt.Errorf("no processing export job found for id=%s", id)
	}
	job.Status = model.ExportStatusFailed
	job.ErrorMessage = &errorMessage
	job.CompletedAt = &completedAt
	return nil
}

func (m *memStore) ListExpiredCompleted(_ context.Context, cutoff time.Time) ([]*model.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ExportJob
	for _, job := range m.jobs {
		if job.Status == model.ExportStatusCompleted &&
			job.CompletedAt != nil && job.CompletedAt.Before(cutoff) &&
			job.FilePath != nil {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListStaleFailed(_ context.Context, cutoff time.Time) ([]*model.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ExportJob
	for _, job := range m.jobs {
		if job.Status == model.ExportStatusFailed &&
			job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ClearFilePath(_ context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("no export job found for id=%s", id)
	}
	job.FilePath = nil
	job.FileSizeBytes = nil
	job.ExpiresAt = &expiresAt
	return nil
}

func (m *memStore) CountByStatus(_ context.Context) (map[model.ExportStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.ExportStatus]int64)
	for _, job := range m.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// memQueue is a channel-backed cache.Queue for worker-loop tests.
type memQueue struct {
	tasks chan model.ExportTask
}

func newMemQueue() *memQueue {
	return &memQueue{tasks: make(chan model.ExportTask, 128)}
}

func (q *memQueue) PushExportTask(task model.ExportTask) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return cache.ErrQueueFull
	}
}

func (q *memQueue) PopExportTask() (model.ExportTask, error) {
	select {
	case task := <-q.tasks:
		return task, nil
	case <-time.After(10 * time.Millisecond):
		return model.ExportTask{}, cache.ErrQueueEmpty
	}
}

func (q *memQueue) Len() (int64, error) {
	return int64(len(q.tasks)), nil
}

func (q *memQueue) Clear() error {
	for {
		select {
		case <-q.tasks:
		default:
			return nil
		}
	}
}

// fakeSource returns a fixed dataset, an error, or panics, and counts calls.
type fakeSource struct {
	mu      sync.Mutex
	calls   int
	dataset *export.Dataset
	err     error
	panics  bool
}

func (f *fakeSource) Rows(context.Context, model.ExportType, model.ExportFilters) (*export.Dataset, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("data source blew up")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.dataset, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type notification struct {
	userID     int64
	jobID      string
	exportType model.ExportType
	filePath   string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (f *fakeNotifier) ExportCompleted(_ context.Context, userID int64, jobID string, exportType model.ExportType, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notification{userID, jobID, exportType, filePath})
	return nil
}

func (f *fakeNotifier) all() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.events...)
}
