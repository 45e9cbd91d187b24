package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/traveldata/hotel-exporter/internal/errors"
	"github.com/traveldata/hotel-exporter/internal/model"
)

const (
	// Directories are owner rwx + group rx; completed files owner rw only.
	dirPerm  = 0o750
	filePerm = 0o600
)

// Manager owns the export output tree: deterministic placement, permission
// hardening and deletion. It knows nothing about export content.
type Manager struct {
	basePath string
}

// NewManager ensures the base directory exists and is hardened. Failure here
// is fatal for the process: no export can proceed without storage.
func NewManager(basePath string) (*Manager, error) {
	if basePath == "" {
		return nil, errors.New("storage base path is empty",
			errors.WithID("exporter.storage.init.base_path_empty"))
	}
	if err := os.MkdirAll(basePath, dirPerm); err != nil {
		return nil, errors.New("unable to create storage base directory",
			errors.WithID("exporter.storage.init.mkdir.error"),
			errors.WithCause(err))
	}
	// MkdirAll leaves pre-existing directories untouched, re-assert the mode.
	if err := os.Chmod(basePath, dirPerm); err != nil {
		return nil, errors.New("unable to harden storage base directory",
			errors.WithID("exporter.storage.init.chmod.error"),
			errors.WithCause(err))
	}
	return &Manager{basePath: basePath}, nil
}

func (m *Manager) BasePath() string {
	return m.basePath
}

// FilePath returns the output path for a job and creates the per-user,
// per-type subdirectory on demand:
//
//	{base}/{user_id}/{type singular}/{type}_{job_id}_{YYYYMMDD_HHMMSS}.{ext}
//
// The result is deterministic for identical inputs. Timestamp granularity is
// seconds, so callers must reuse the first returned path when retrying for
// the same job.
func (m *Manager) FilePath(jobID string, exportType model.ExportType, format model.ExportFormat, ts time.Time, userID int64) (string, error) {
	dir := m.jobDir(userID, exportType)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", errors.New("unable to create export directory",
			errors.WithID("exporter.storage.file_path.mkdir.error"),
			errors.WithCause(err))
	}
	if err := os.Chmod(dir, dirPerm); err != nil {
		return "", errors.New("unable to harden export directory",
			errors.WithID("exporter.storage.file_path.chmod.error"),
			errors.WithCause(err))
	}
	name := fmt.Sprintf("%s_%s_%s.%s",
		exportType, jobID, ts.Format("20060102_150405"), format.Extension())
	return filepath.Join(dir, name), nil
}

// HardenFile restricts a completed file to owner read/write. Failure is
// logged and swallowed: the file stays usable even over-permissioned, and a
// permission race must not fail an otherwise successful export.
func (m *Manager) HardenFile(path string) {
	if err := os.Chmod(path, filePerm); err != nil {
		slog.Warn("exporter.storage.harden_file.chmod_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// FileSize returns the byte size of path, or (0, false) when the file does
// not exist or cannot be stat'ed.
func (m *Manager) FileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// Delete removes a file and reports whether a file was actually deleted. A
// missing file is treated as already reclaimed: success=false, no error for
// the caller to escalate.
func (m *Manager) Delete(path string) bool {
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("exporter.storage.delete.failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return false
	}
	return true
}

// RemoveJobFiles deletes every output file a job may have produced,
// matching by the deterministic {type}_{jobID}_* prefix. Failed jobs never
// record file_path, so partial output is found this way. Returns how many
// files were removed and how many matched but could not be deleted.
func (m *Manager) RemoveJobFiles(userID int64, exportType model.ExportType, jobID string) (removed, failed int) {
	pattern := filepath.Join(m.jobDir(userID, exportType),
		fmt.Sprintf("%s_%s_*", exportType, jobID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		slog.Warn("exporter.storage.remove_job_files.glob_failed",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()))
		return 0, 0
	}
	for _, path := range matches {
		if m.Delete(path) {
			removed++
			continue
		}
		// Delete returns false for both "already gone" and a real error;
		// only a file that is still present counts as a failed deletion.
		if _, exists := m.FileSize(path); exists {
			failed++
		}
	}
	return removed, failed
}

func (m *Manager) jobDir(userID int64, exportType model.ExportType) string {
	return filepath.Join(m.basePath,
		strconv.FormatInt(userID, 10), exportType.Singular())
}
