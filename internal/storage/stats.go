package storage

import (
	"io/fs"
	"path/filepath"
	"time"
)

// Stats is an observability snapshot of the storage tree. It is never used
// for correctness decisions.
type Stats struct {
	FileCount  int
	TotalBytes int64
	OldestFile time.Time
	NewestFile time.Time
}

// Stats walks the storage tree. Unreadable entries are skipped rather than
// aborting the walk.
func (m *Manager) Stats() Stats {
	var s Stats
	_ = filepath.WalkDir(m.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		s.FileCount++
		s.TotalBytes += info.Size()
		mod := info.ModTime()
		if s.OldestFile.IsZero() || mod.Before(s.OldestFile) {
			s.OldestFile = mod
		}
		if mod.After(s.NewestFile) {
			s.NewestFile = mod
		}
		return nil
	})
	return s
}
