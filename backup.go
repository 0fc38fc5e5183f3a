package safefile

import (
	"fmt"
	"os"

	"github.com/ewachtel/safefile/internal/atomicfile"
)

// backupSuffix names the sibling backup files for a managed file.
const backupSuffix = ".backup"

// BackupPath returns the path of the given backup slot. Slot 0 is the
// newest retained snapshot (<path>.backup), slot n is <path>.backup.<n>.
func BackupPath(path string, slot int) string {
	if slot == 0 {
		return path + backupSuffix
	}
	return fmt.Sprintf("%s%s.%d", path, backupSuffix, slot)
}

// rotateBackups shifts the backup ring up by one slot and snapshots the
// current file into slot 0. Must be called while the exclusive lock is
// held, immediately before the write it protects: rotation and write are
// one critical section.
func (m *Manager) rotateBackups() error {
	if m.backupCount == 0 {
		return nil
	}

	// The oldest snapshot falls off the ring.
	oldest := BackupPath(m.path, m.backupCount-1)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return &WriteError{Path: m.path, Op: "rotate backups", Err: err}
	}

	// Shift remaining slots up: i -> i+1, oldest first.
	for i := m.backupCount - 2; i >= 0; i-- {
		src := BackupPath(m.path, i)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return &WriteError{Path: m.path, Op: "rotate backups", Err: err}
		}
		if err := os.Rename(src, BackupPath(m.path, i+1)); err != nil {
			return &WriteError{Path: m.path, Op: "rotate backups", Err: err}
		}
	}

	// Snapshot the current content into slot 0. Written atomically so a
	// reader cascading through the ring never sees a half-copied backup.
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to back up yet
		}
		return &WriteError{Path: m.path, Op: "snapshot current file", Err: err}
	}
	if err := atomicfile.WriteFile(BackupPath(m.path, 0), data, m.mode, m.fsync); err != nil {
		return &WriteError{Path: m.path, Op: "snapshot current file", Err: err}
	}
	return nil
}
