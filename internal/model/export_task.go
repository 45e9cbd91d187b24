package model

// ExportTask is the job pointer pushed through Redis. It must be
// JSON-serializable; the job record in postgres stays the source of truth and
// a worker must still claim the job there before doing any work.
type ExportTask struct {
	JobID      string       `json:"job_id"`
	UserID     int64        `json:"user_id"`
	ExportType ExportType   `json:"export_type"`
	Format     ExportFormat `json:"format"`
}
