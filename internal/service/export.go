package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/traveldata/hotel-exporter/internal/cache"
	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
	"github.com/traveldata/hotel-exporter/internal/store"
)

// ExportService is the caller-facing surface: create an export job, read its
// state. The transport wrapping it (HTTP/gRPC) lives outside this service.
type ExportService interface {
	CreateExport(ctx context.Context, req *CreateExportRequest) (*model.ExportJob, error)
	GetExport(ctx context.Context, userID int64, jobID string) (*model.ExportJob, error)
	ListExports(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error)
}

type CreateExportRequest struct {
	UserID     int64           `json:"user_id"`
	ExportType string          `json:"export_type"`
	Format     string          `json:"format"`
	Filters    json.RawMessage `json:"filters"`
}

type ExportServiceImpl struct {
	jobs  store.ExportJobStore
	queue cache.Queue
	log   *slog.Logger
}

func NewExportService(jobs store.ExportJobStore, queue cache.Queue, log *slog.Logger) (ExportService, error) {
	if jobs == nil || queue == nil {
		return nil, errors.Internal("store or queue is nil in ExportService")
	}
	return &ExportServiceImpl{jobs: jobs, queue: queue, log: log}, nil
}

// CreateExport validates the request, persists a pending job and enqueues a
// task for the worker pool. Filter validation happens here so a malformed
// payload is rejected at creation, not when a worker picks the job up.
func (s *ExportServiceImpl) CreateExport(ctx context.Context, req *CreateExportRequest) (*model.ExportJob, error) {
	if req.UserID == 0 {
		return nil, errors.New("user_id is required",
			errors.WithID("exporter.service.create.user_required"))
	}
	exportType, err := model.ParseExportType(req.ExportType)
	if err != nil {
		return nil, err
	}
	format, err := model.ParseExportFormat(req.Format)
	if err != nil {
		return nil, err
	}
	filters, err := model.ParseExportFilters(exportType, req.Filters)
	if err != nil {
		return nil, err
	}

	job := &model.ExportJob{
		ID:         "exp_" + uuid.NewString(),
		UserID:     req.UserID,
		ExportType: exportType,
		Format:     format,
		Filters:    filters,
		Status:     model.ExportStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	task := model.ExportTask{
		JobID:      job.ID,
		UserID:     job.UserID,
		ExportType: job.ExportType,
		Format:     job.Format,
	}
	if err := s.queue.PushExportTask(task); err != nil {
		// The pending record stays; a requeue or cleanup pass can handle it.
		// Surfacing the error keeps queue back-pressure visible to callers.
		s.log.ErrorContext(ctx, "enqueue export task failed",
			"jobID", job.ID, "error", err)
		return nil, err
	}

	s.log.InfoContext(ctx, "export job created",
		"jobID", job.ID,
		"userID", job.UserID,
		"exportType", job.ExportType,
		"format", job.Format)
	return job, nil
}

func (s *ExportServiceImpl) GetExport(ctx context.Context, userID int64, jobID string) (*model.ExportJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, errors.NewDBNotFoundError("export_service.get",
			"no export job found for id="+jobID)
	}
	return job, nil
}

func (s *ExportServiceImpl) ListExports(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required",
			errors.WithID("exporter.service.list.user_required"))
	}
	return s.jobs.ListByUser(ctx, userID, limit, offset)
}
