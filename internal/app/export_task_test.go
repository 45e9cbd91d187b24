package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/traveldata/hotel-exporter/config"
	"github.com/traveldata/hotel-exporter/internal/export"
	"github.com/traveldata/hotel-exporter/internal/model"
	"github.com/traveldata/hotel-exporter/internal/storage"
)

func newTestApp(t *testing.T, ms *memStore, src export.DataSource, fn *fakeNotifier) *App {
	t.Helper()
	manager, err := storage.NewManager(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)
	return &App{
		Config: &cfg.AppConfig{
			Export: &cfg.ExportConfig{
				Workers:        3,
				RetentionHours: 24,
				FailedAgeHours: 1,
			},
		},
		Store:     ms,
		Storage:   manager,
		Renderers: export.NewRegistry(),
		source:    src,
		notifier:  fn,
	}
}

func pendingJob(id string, userID int64, exportType model.ExportType, format model.ExportFormat) *model.ExportJob {
	return &model.ExportJob{
		ID:         id,
		UserID:     userID,
		ExportType: exportType,
		Format:     format,
		Status:     model.ExportStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func taskFor(job *model.ExportJob) model.ExportTask {
	return model.ExportTask{
		JobID:      job.ID,
		UserID:     job.UserID,
		ExportType: job.ExportType,
		Format:     job.Format,
	}
}

var hotelDataset = &export.Dataset{
	Header: []string{"id", "name", "city_code"},
	Records: [][]string{
		{"1", "Grand Hotel", "PAR"},
		{"2", "Sea View", "BCN"},
	},
}

func TestHandleExportTaskCompletes(t *testing.T) {
	ms := newMemStore()
	fn := &fakeNotifier{}
	app := newTestApp(t, ms, &fakeSource{dataset: hotelDataset}, fn)

	job := pendingJob("exp_001", 1, model.ExportTypeHotels, model.ExportFormatCSV)
	ms.put(job)

	require.NoError(t, app.HandleExportTask(context.Background(), 1, taskFor(job)))

	got, err := ms.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusCompleted, got.Status)
	assert.EqualValues(t, 100, got.ProgressPercentage)
	assert.EqualValues(t, 2, got.TotalRecords)
	require.NotNil(t, got.FilePath)
	require.NotNil(t, got.FileSizeBytes)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, got.CompletedAt.Add(24*time.Hour), *got.ExpiresAt)

	size, ok := app.Storage.FileSize(*got.FilePath)
	assert.True(t, ok)
	assert.Equal(t, *got.FileSizeBytes, size)

	events := fn.all()
	require.Len(t, events, 1)
	assert.Equal(t, job.ID, events[0].jobID)
	assert.Equal(t, *got.FilePath, events[0].filePath)
}

func TestHandleExportTaskSourceError(t *testing.T) {
	ms := newMemStore()
	fn := &fakeNotifier{}
	app := newTestApp(t, ms, &fakeSource{err: errors.New("supplier feed unavailable")}, fn)

	job := pendingJob("exp_002", 1, model.ExportTypeMappings, model.ExportFormatJSON)
	ms.put(job)

	err := app.HandleExportTask(context.Background(), 1, taskFor(job))
	assert.Error(t, err)

	got, err := ms.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "supplier feed unavailable")
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.FilePath)
	assert.Empty(t, fn.all())
}

func TestHandleExportTaskPanicFinalizes(t *testing.T) {
	ms := newMemStore()
	app := newTestApp(t, ms, &fakeSource{panics: true}, &fakeNotifier{})

	job := pendingJob("exp_003", 2, model.ExportTypeHotels, model.ExportFormatCSV)
	ms.put(job)

	err := app.HandleExportTask(context.Background(), 1, taskFor(job))
	assert.Error(t, err)

	got, err := ms.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "panicked")
}

func TestHandleExportTaskRendererMissing(t *testing.T) {
	ms := newMemStore()
	app := newTestApp(t, ms, &fakeSource{dataset: hotelDataset}, &fakeNotifier{})

	// Excel has no builtin renderer; the job fails instead of sticking.
	job := pendingJob("exp_004", 3, model.ExportTypeHotels, model.ExportFormatExcel)
	ms.put(job)

	err := app.HandleExportTask(context.Background(), 1, taskFor(job))
	assert.Error(t, err)

	got, err := ms.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, got.Status)
}

func TestHandleExportTaskSkipsClaimedJob(t *testing.T) {
	ms := newMemStore()
	src := &fakeSource{dataset: hotelDataset}
	app := newTestApp(t, ms, src, &fakeNotifier{})

	job := pendingJob("exp_005", 1, model.ExportTypeHotels, model.ExportFormatCSV)
	job.Status = model.ExportStatusProcessing
	ms.put(job)

	require.NoError(t, app.HandleExportTask(context.Background(), 1, taskFor(job)))
	assert.Equal(t, 0, src.callCount())
}

func TestClaimRaceExactlyOneWorkerWins(t *testing.T) {
	ms := newMemStore()
	src := &fakeSource{dataset: hotelDataset}
	app := newTestApp(t, ms, src, &fakeNotifier{})

	job := pendingJob("exp_race", 1, model.ExportTypeHotels, model.ExportFormatCSV)
	ms.put(job)
	task := taskFor(job)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			_ = app.HandleExportTask(context.Background(), workerID, task)
		}(i + 1)
	}
	wg.Wait()

	// Exactly one worker got past the claim and executed the export.
	assert.Equal(t, 1, src.callCount())

	got, err := ms.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusCompleted, got.Status)
}

func TestExportWorkersReportShutdown(t *testing.T) {
	ms := newMemStore()
	app := newTestApp(t, ms, &fakeSource{dataset: hotelDataset}, &fakeNotifier{})
	app.exitCh = make(chan error, 1)
	app.Queue = newMemQueue()

	ctx, cancel := context.WithCancel(context.Background())
	app.StartExportWorkers(ctx)
	cancel()

	// Stop cancels the worker context; the pool must report back so Start
	// unblocks instead of hanging forever.
	select {
	case err := <-app.exitCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool never reported shutdown")
	}
}

func TestRunWorkerDrainsQueue(t *testing.T) {
	ms := newMemStore()
	src := &fakeSource{dataset: hotelDataset}
	app := newTestApp(t, ms, src, &fakeNotifier{})

	queue := newMemQueue()
	app.Queue = queue

	const jobs = 8
	for i := 0; i < jobs; i++ {
		job := pendingJob(fmt.Sprintf("exp_%03d", i), 1, model.ExportTypeHotels, model.ExportFormatCSV)
		ms.put(job)
		require.NoError(t, queue.PushExportTask(taskFor(job)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.StartExportWorkers(ctx)

	require.Eventually(t, func() bool {
		counts, err := ms.CountByStatus(context.Background())
		require.NoError(t, err)
		return counts[model.ExportStatusCompleted] == jobs
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
}
