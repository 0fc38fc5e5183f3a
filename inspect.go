package safefile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ewachtel/safefile/internal/atomicfile"
	"github.com/ewachtel/safefile/internal/filelock"
)

// BackupInfo describes one occupied slot of the backup ring.
type BackupInfo struct {
	Slot    int       `json:"slot"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Info is a point-in-time snapshot of the managed file and its siblings.
type Info struct {
	Path       string       `json:"path"`
	Exists     bool         `json:"exists"`
	Size       int64        `json:"size"`
	ModTime    time.Time    `json:"modTime"`
	Locked     bool         `json:"locked"`
	Backups    []BackupInfo `json:"backups"`
	StaleTemps []string     `json:"staleTemps"`
}

// Inspect reports on the managed file without taking the lock: the lock
// status comes from a non-blocking check that never creates nor unlinks
// the lock artifact, so inspection is side-effect free and cannot
// disturb a concurrent holder or waiter.
func (m *Manager) Inspect() (*Info, error) {
	info := &Info{Path: m.path}

	fi, err := os.Stat(m.path)
	switch {
	case err == nil:
		info.Exists = true
		info.Size = fi.Size()
		info.ModTime = fi.ModTime()
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", m.path, err)
	}

	locked, err := filelock.IsLocked(m.lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check lock on %s: %w", m.path, err)
	}
	info.Locked = locked

	for slot := 0; slot < m.backupCount; slot++ {
		p := BackupPath(m.path, slot)
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		info.Backups = append(info.Backups, BackupInfo{
			Slot:    slot,
			Path:    p,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	dir := filepath.Dir(m.path)
	base := filepath.Base(m.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !atomicfile.IsTempFile(e.Name(), base) {
			continue
		}
		info.StaleTemps = append(info.StaleTemps, filepath.Join(dir, e.Name()))
	}

	return info, nil
}
