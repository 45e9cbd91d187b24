package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	dberr "github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
	"github.com/traveldata/hotel-exporter/internal/store"
)

const exportJobTable = "hotel_exporter.export_jobs"

var exportJobColumns = []string{
	"id",
	"user_id",
	"export_type",
	"format",
	"filters",
	"status",
	"progress_percentage",
	"processed_records",
	"total_records",
	"file_path",
	"file_size_bytes",
	"error_message",
	"created_at",
	"started_at",
	"completed_at",
	"expires_at",
}

type ExportJob struct {
	storage *Store
}

func NewExportJobStore(store *Store) (store.ExportJobStore, error) {
	if store == nil {
		return nil, dberr.NewDBInternalError("new_store", errors.New("store is nil"))
	}
	return &ExportJob{storage: store}, nil
}

func (e *ExportJob) Create(ctx context.Context, job *model.ExportJob) error {
	db, err := e.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("export_job.create", err)
	}

	filters, err := json.Marshal(job.Filters)
	if err != nil {
		return dberr.NewDBInternalError("export_job.create", err)
	}

	query := `
		INSERT INTO hotel_exporter.export_jobs
			(id, user_id, export_type, format, filters, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = db.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.ExportType,
		job.Format,
		filters,
		job.Status,
		job.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation
				return &dberr.DBUniqueViolationError{
					DBError: *dberr.NewDBError("export_job.create", pgErr.Message),
					Column:  pgErr.ConstraintName,
				}
			case "23503": // foreign_key_violation
				return &dberr.DBForeignKeyViolationError{
					DBError:         *dberr.NewDBError("export_job.create", pgErr.Message),
					ForeignKeyTable: pgErr.TableName,
				}
			}
		}
		return dberr.NewDBInternalError("export_job.create", err)
	}
	return nil
}

func (e *ExportJob) Get(ctx context.Context, id string) (*model.ExportJob, error) {
	db, err := e.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.get", err)
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	sqlStr, args, err := psql.
		Select(exportJobColumns...).
		From(exportJobTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.get", err)
	}

	row := db.QueryRow(ctx, sqlStr, args...)
	job, err := scanExportJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.NewDBNotFoundError("export_job.get",
				fmt.Sprintf("no export job found for id=%s", id))
		}
		return nil, dberr.NewDBInternalError("export_job.get", err)
	}
	return job, nil
}

func (e *ExportJob) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error) {
	db, err := e.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.list_by_user", err)
	}

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	sqlStr, args, err := psql.
		Select(exportJobColumns...).
		From(exportJobTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.list_by_user", err)
	}

	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.list_by_user", err)
	}
	defer rows.Close()

	var jobs []*model.ExportJob
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError("export_job.list_by_user", err)
		}
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("export_job.list_by_user", err)
	}
	return jobs, nil
}

// Claim moves a pending job to processing. The conditional update is the
// claim atomicity guarantee: concurrent claimers race on the same row and
// postgres lets exactly one of them match status='pending'.
func (e *ExportJob) Claim(ctx context.Context, id string) (*model.ExportJob, bool, error) {
	db, err := e.storage.Database()
	if err != nil {
		return nil, false, dberr.NewDBInternalError("export_job.claim", err)
	}

	query := fmt.Sprintf(`
		UPDATE hotel_exporter.export_jobs
		SET status = $1,
		    started_at = $2
		WHERE id = $3 AND status = $4
		RETURNING %s
	`, strings.Join(exportJobColumns, ", "))

	row := db.QueryRow(ctx, query,
		model.ExportStatusProcessing,
		time.Now().UTC(),
		id,
		model.ExportStatusPending,
	)
	job, err := scanExportJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Another worker already owns the job, or it no longer exists.
			return nil, false, nil
		}
		return nil, false, dberr.NewDBInternalError("export_job.claim", err)
	}
	return job, true, nil
}

func (e *ExportJob) UpdateProgress(ctx context.Context, id string, processed, total int64, percentage int32) error {
	db, err := e.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("export_job.update_progress", err)
	}

	query := `
		UPDATE hotel_exporter.export_jobs
		SET processed_records = $1,
		    total_records = $2,
		    progress_percentage = $3
		WHERE id = $4 AND status = $5
	`
	_, err = db.Exec(ctx, query, processed, total, percentage, id, model.ExportStatusProcessing)
	if err != nil {
		return dberr.NewDBInternalError("export_job.update_progress", err)
	}
	return nil
}

func (e *ExportJob) MarkCompleted(ctx context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error {
	db, err := e.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("export_job.mark_completed", err)
	}

	query := `
		UPDATE hotel_exporter.export_jobs
		SET status = $1,
		    file_path = $2,
		    file_size_bytes = $3,
		    completed_at = $4,
		    expires_at = $5,
		    progress_percentage = 100
		WHERE id = $6 AND status = $7
	`
	cmd, err := db.Exec(ctx, query,
		model.ExportStatusCompleted,
		filePath,
		fileSize,
		completedAt,
		expiresAt,
		id,
		model.ExportStatusProcessing,
	)
	if err != nil {
		return dberr.NewDBInternalError("export_job.mark_completed", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("export_job.mark_completed",
			fmt.Sprintf("no processing export job found for id=%s", id))
	}
	return nil
}

func (e *ExportJob) MarkFailed(ctx context.Context, id, errorMessage string, completedAt time.Time) error {
	db, err := e.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("export_job.mark_failed", err)
	}

	query := `
		UPDATE hotel_exporter.export_jobs
		SET status = $1,
		    error_message = $2,
		    completed_at = $3
		WHERE id = $4 AND status = $5
	`
	cmd, err := db.Exec(ctx, query,
		model.ExportStatusFailed,
		errorMessage,
		completedAt,
		id,
		model.ExportStatusProcessing,
	)
	if err != nil {
		return dberr.NewDBInternalError("export_job.mark_failed", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("export_job.mark_failed",
			fmt.Sprintf("no processing export job found for id=%s", id))
	}
	return nil
}

func (e *ExportJob) ListExpiredCompleted(ctx context.Context, cutoff time.Time) ([]*model.ExportJob, error) {
	return e.listTerminal(ctx, "export_job.list_expired_completed",
		model.ExportStatusCompleted, cutoff, true)
}

func (e *ExportJob) ListStaleFailed(ctx context.Context, cutoff time.Time) ([]*model.ExportJob, error) {
	return e.listTerminal(ctx, "export_job.list_stale_failed",
		model.ExportStatusFailed, cutoff, false)
}

func (e *ExportJob) listTerminal(ctx context.Context, where string, status model.ExportStatus, cutoff time.Time, withFileOnly bool) ([]*model.ExportJob, error) {
	db, err := e.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(where, err)
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query := psql.
		Select(exportJobColumns...).
		From(exportJobTable).
		Where(sq.Eq{"status": status}).
		Where(sq.Lt{"completed_at": cutoff}).
		OrderBy("completed_at ASC")
	if withFileOnly {
		query = query.Where(sq.NotEq{"file_path": nil})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(where, err)
	}

	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, dberr.NewDBInternalError(where, err)
	}
	defer rows.Close()

	var jobs []*model.ExportJob
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError(where, err)
		}
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError(where, err)
	}
	return jobs, nil
}

// ClearFilePath detaches the reclaimed file from a terminal job. Status is
// intentionally left untouched.
func (e *ExportJob) ClearFilePath(ctx context.Context, id string, expiresAt time.Time) error {
	db, err := e.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("export_job.clear_file_path", err)
	}

	query := `
		UPDATE hotel_exporter.export_jobs
		SET file_path = NULL,
		    file_size_bytes = NULL,
		    expires_at = $1
		WHERE id = $2
	`
	cmd, err := db.Exec(ctx, query, expiresAt, id)
	if err != nil {
		return dberr.NewDBInternalError("export_job.clear_file_path", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("export_job.clear_file_path",
			fmt.Sprintf("no export job found for id=%s", id))
	}
	return nil
}

func (e *ExportJob) CountByStatus(ctx context.Context) (map[model.ExportStatus]int64, error) {
	db, err := e.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.count_by_status", err)
	}

	rows, err := db.Query(ctx,
		`SELECT status, COUNT(*) FROM hotel_exporter.export_jobs GROUP BY status`)
	if err != nil {
		return nil, dberr.NewDBInternalError("export_job.count_by_status", err)
	}
	defer rows.Close()

	counts := make(map[model.ExportStatus]int64)
	for rows.Next() {
		var status model.ExportStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, dberr.NewDBInternalError("export_job.count_by_status", err)
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("export_job.count_by_status", err)
	}
	return counts, nil
}

func scanExportJob(row pgx.Row) (*model.ExportJob, error) {
	var job model.ExportJob
	var filters []byte
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ExportType,
		&job.Format,
		&filters,
		&job.Status,
		&job.ProgressPercentage,
		&job.ProcessedRecords,
		&job.TotalRecords,
		&job.FilePath,
		&job.FileSizeBytes,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &job.Filters); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
