package model

import (
	"time"

	"github.com/traveldata/hotel-exporter/internal/errors"
)

type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// Terminal reports whether no further status transition may occur.
func (s ExportStatus) Terminal() bool {
	return s == ExportStatusCompleted || s == ExportStatusFailed
}

type ExportType string

const (
	ExportTypeHotels          ExportType = "hotels"
	ExportTypeMappings        ExportType = "mappings"
	ExportTypeSupplierSummary ExportType = "supplier_summary"
)

func ParseExportType(s string) (ExportType, error) {
	switch ExportType(s) {
	case ExportTypeHotels, ExportTypeMappings, ExportTypeSupplierSummary:
		return ExportType(s), nil
	default:
		return "", errors.New("invalid export type: "+s,
			errors.WithID("exporter.model.export_type.invalid"))
	}
}

// Singular is the per-type directory segment under the user's storage root.
func (t ExportType) Singular() string {
	switch t {
	case ExportTypeHotels:
		return "hotel"
	case ExportTypeMappings:
		return "mapping"
	default:
		return string(t)
	}
}

type ExportFormat string

const (
	ExportFormatCSV   ExportFormat = "csv"
	ExportFormatJSON  ExportFormat = "json"
	ExportFormatExcel ExportFormat = "excel"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportFormatCSV, ExportFormatJSON, ExportFormatExcel:
		return ExportFormat(s), nil
	default:
		return "", errors.New("invalid export format: "+s,
			errors.WithID("exporter.model.export_format.invalid"))
	}
}

// Extension returns the output file extension without the dot.
func (f ExportFormat) Extension() string {
	if f == ExportFormatExcel {
		return "xlsx"
	}
	return string(f)
}

// ExportJob is the persisted job record. Workers mutate progress and the
// terminal fields; the cleanup pass clears FilePath after reclamation.
type ExportJob struct {
	ID                 string        `db:"id"`
	UserID             int64         `db:"user_id"`
	ExportType         ExportType    `db:"export_type"`
	Format             ExportFormat  `db:"format"`
	Filters            ExportFilters `db:"filters"`
	Status             ExportStatus  `db:"status"`
	ProgressPercentage int32         `db:"progress_percentage"`
	ProcessedRecords   int64         `db:"processed_records"`
	TotalRecords       int64         `db:"total_records"`
	FilePath           *string       `db:"file_path"`
	FileSizeBytes      *int64        `db:"file_size_bytes"`
	ErrorMessage       *string       `db:"error_message"`
	CreatedAt          time.Time     `db:"created_at"`
	StartedAt          *time.Time    `db:"started_at"`
	CompletedAt        *time.Time    `db:"completed_at"`
	ExpiresAt          *time.Time    `db:"expires_at"`
}
