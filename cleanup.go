package safefile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewachtel/safefile/internal/atomicfile"
	"github.com/ewachtel/safefile/internal/filelock"
)

// DefaultMinOrphanAge is the grace period before a temp file is treated
// as an orphan. It keeps the cleaner away from a write that is genuinely
// in flight in another process.
const DefaultMinOrphanAge = time.Hour

// Cleaner removes temporary files left behind by interrupted writes.
type Cleaner struct {
	// MinAge is the minimum age a temp file must have before the cleaner
	// will consider it an orphan. If zero, DefaultMinOrphanAge is used.
	MinAge time.Duration
	// DryRun when true reports what would be removed without deleting
	// anything.
	DryRun bool
}

// CleanupReport summarizes what was removed and what was skipped.
type CleanupReport struct {
	Removed []string
	Skipped []string
}

// CleanStaleTemps scans the managed file's directory for orphaned temp
// files and removes those older than the grace period. It runs under the
// exclusive lock so it cannot race a writer on this path. A temp file
// that cannot be removed is logged as a warning and skipped; it does not
// fail the call.
func (m *Manager) CleanStaleTemps(c Cleaner) (*CleanupReport, error) {
	minAge := c.MinAge
	if minAge == 0 {
		minAge = DefaultMinOrphanAge
	}

	lock, err := m.acquireLock(filelock.Exclusive)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	dir := filepath.Dir(m.path)
	base := filepath.Base(m.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &CleanupReport{}, nil
		}
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	now := time.Now()
	var report CleanupReport
	for _, e := range entries {
		if e.IsDir() || !atomicfile.IsTempFile(e.Name(), base) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		fi, err := e.Info()
		if err != nil {
			report.Skipped = append(report.Skipped, p)
			continue
		}
		if now.Sub(fi.ModTime()) < minAge {
			report.Skipped = append(report.Skipped, p)
			continue
		}
		if c.DryRun {
			report.Removed = append(report.Removed, p)
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			m.log.WithFields(logrus.Fields{"path": p, "error": err}).
				Warn("failed to remove stale temp file")
			report.Skipped = append(report.Skipped, p)
			continue
		}
		report.Removed = append(report.Removed, p)
	}

	return &report, nil
}
