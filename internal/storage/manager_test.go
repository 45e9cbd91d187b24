package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traveldata/hotel-exporter/internal/model"
)

func newTestManager(t *testing.T) *Manager {
	m, err := NewManager(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)
	return m
}

func TestNewManagerHardensBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "exports")
	_, err := NewManager(base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}

func TestNewManagerEmptyPath(t *testing.T) {
	_, err := NewManager("")
	assert.Error(t, err)
}

func TestFilePathDeterministic(t *testing.T) {
	m := newTestManager(t)
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	p1, err := m.FilePath("exp_001", model.ExportTypeHotels, model.ExportFormatCSV, ts, 1)
	require.NoError(t, err)
	p2, err := m.FilePath("exp_001", model.ExportTypeHotels, model.ExportFormatCSV, ts, 1)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t,
		filepath.Join(m.BasePath(), "1", "hotel", "hotels_exp_001_20250101_120000.csv"), p1)

	// The per-user/per-type directory exists and is hardened.
	info, err := os.Stat(filepath.Dir(p1))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}

func TestFilePathExtensions(t *testing.T) {
	m := newTestManager(t)
	ts := time.Date(2025, 6, 15, 8, 30, 45, 0, time.UTC)

	p, err := m.FilePath("exp_002", model.ExportTypeMappings, model.ExportFormatExcel, ts, 7)
	require.NoError(t, err)
	assert.Equal(t, "mappings_exp_002_20250615_083045.xlsx", filepath.Base(p))
	assert.Equal(t, "mapping", filepath.Base(filepath.Dir(p)))

	p, err = m.FilePath("exp_003", model.ExportTypeSupplierSummary, model.ExportFormatJSON, ts, 7)
	require.NoError(t, err)
	assert.Equal(t, "supplier_summary_exp_003_20250615_083045.json", filepath.Base(p))
	assert.Equal(t, "supplier_summary", filepath.Base(filepath.Dir(p)))
}

func TestHardenFile(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BasePath(), "file.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))

	m.HardenFile(path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Missing file must not panic, only log.
	m.HardenFile(filepath.Join(m.BasePath(), "missing.csv"))
}

func TestFileSize(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BasePath(), "file.json")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o600))

	size, ok := m.FileSize(path)
	assert.True(t, ok)
	assert.EqualValues(t, 5, size)

	_, ok = m.FileSize(filepath.Join(m.BasePath(), "missing.json"))
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.BasePath(), "file.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	assert.True(t, m.Delete(path))
	// Second delete: already gone, success=false but not an error condition.
	assert.False(t, m.Delete(path))
}

func TestRemoveJobFiles(t *testing.T) {
	m := newTestManager(t)
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	keep, err := m.FilePath("exp_keep", model.ExportTypeHotels, model.ExportFormatCSV, ts, 42)
	require.NoError(t, err)
	partial, err := m.FilePath("exp_gone", model.ExportTypeHotels, model.ExportFormatCSV, ts, 42)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o600))
	require.NoError(t, os.WriteFile(partial, []byte("partial"), 0o600))

	removed, failed := m.RemoveJobFiles(42, model.ExportTypeHotels, "exp_gone")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, failed)

	_, ok := m.FileSize(partial)
	assert.False(t, ok)
	_, ok = m.FileSize(keep)
	assert.True(t, ok)
}

func TestRemoveJobFilesUndeletable(t *testing.T) {
	m := newTestManager(t)
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	partial, err := m.FilePath("exp_stuck", model.ExportTypeHotels, model.ExportFormatCSV, ts, 9)
	require.NoError(t, err)
	// A non-empty directory matching the job prefix cannot be removed;
	// it must be reported as a failed deletion, not silently dropped.
	require.NoError(t, os.Mkdir(partial, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(partial, "chunk"), []byte("x"), 0o600))

	removed, failed := m.RemoveJobFiles(9, model.ExportTypeHotels, "exp_stuck")
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, failed)
}

func TestStats(t *testing.T) {
	m := newTestManager(t)
	ts := time.Now().UTC()

	p1, err := m.FilePath("exp_a", model.ExportTypeHotels, model.ExportFormatCSV, ts, 1)
	require.NoError(t, err)
	p2, err := m.FilePath("exp_b", model.ExportTypeMappings, model.ExportFormatJSON, ts, 2)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p1, []byte("12345"), 0o600))
	require.NoError(t, os.WriteFile(p2, []byte("1234567890"), 0o600))

	stats := m.Stats()
	assert.Equal(t, 2, stats.FileCount)
	assert.EqualValues(t, 15, stats.TotalBytes)
	assert.False(t, stats.OldestFile.IsZero())
	assert.False(t, stats.NewestFile.Before(stats.OldestFile))
}
