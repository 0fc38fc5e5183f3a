// Package safefile persists one JSON-bearing file on local disk so that it
// is never observable in a partially written or silently corrupted state,
// even under process crashes, concurrent writers, or disk errors.
//
// A Manager owns one logical file. Save serializes the payload, rotates a
// fixed-size ring of backups, and commits via a same-directory temp file
// and an atomic rename, all inside one exclusive cross-process lock. Load
// parses the main file and, if it is corrupt, cascades through the backup
// ring newest-first.
package safefile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewachtel/safefile/internal/atomicfile"
	"github.com/ewachtel/safefile/internal/filelock"
)

// lockSuffix names the sibling lock artifact for a managed file.
const lockSuffix = ".lock"

// Manager coordinates all access to one managed file. Immutable after New;
// safe for concurrent use. Multiple Managers (same or different process)
// may target the same path: they serialize through the OS lock.
type Manager struct {
	path     string
	lockPath string

	lockTimeout time.Duration
	backupCount int
	fsync       bool
	mode        os.FileMode
	codec       Codec
	log         logrus.FieldLogger
}

// New creates a Manager for path. Defaults: 5s lock timeout, 3 backup
// slots, fsync enabled, indented JSON.
func New(path string, opts ...Option) (*Manager, error) {
	if path == "" {
		return nil, errors.New("path cannot be empty")
	}
	m := &Manager{
		path:        path,
		lockPath:    path + lockSuffix,
		lockTimeout: DefaultLockTimeout,
		backupCount: DefaultBackupCount,
		fsync:       true,
		mode:        DefaultFileMode,
		codec:       jsonCodec{},
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.backupCount < 0 {
		return nil, fmt.Errorf("backup count cannot be negative: %d", m.backupCount)
	}
	if m.lockTimeout <= 0 {
		return nil, fmt.Errorf("lock timeout must be positive: %s", m.lockTimeout)
	}
	return m, nil
}

// Path returns the managed file's path.
func (m *Manager) Path() string { return m.path }

// LockPath returns the path of the sibling lock artifact.
func (m *Manager) LockPath() string { return m.lockPath }

// Save serializes v and commits it to the managed file. The previous
// content, if any, becomes backup slot 0. The write either fully commits
// or leaves the file untouched; the lock is released on every path.
func (m *Manager) Save(v any) error {
	data, err := m.codec.Marshal(v)
	if err != nil {
		return &WriteError{Path: m.path, Op: "serialize payload", Err: err}
	}

	lock, err := m.acquireLock(filelock.Exclusive)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := m.rotateBackups(); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(m.path, data, m.mode, m.fsync); err != nil {
		return &WriteError{Path: m.path, Op: "write file", Err: err}
	}
	return nil
}

// Load parses the managed file into out. If the main file is corrupt it
// cascades through the backup ring; the returned LoadInfo reports which
// slot, if any, supplied the content. A missing file yields ErrNotFound
// without touching the lock.
func (m *Manager) Load(out any) (*LoadInfo, error) {
	if _, err := os.Stat(m.path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat %s: %w", m.path, err)
	}

	lock, err := m.acquireLock(filelock.Shared)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	return m.loadLocked(out)
}

// Update performs a read-modify-write as a single critical section: the
// current content is loaded into out (a missing file leaves out as given),
// apply mutates it, and the result is committed with normal backup
// rotation. Concurrent writers cannot interleave between the read and the
// write.
func (m *Manager) Update(out any, apply func() error) error {
	lock, err := m.acquireLock(filelock.Exclusive)
	if err != nil {
		return err
	}
	defer lock.Release()

	if _, err := m.loadLocked(out); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := apply(); err != nil {
		return err
	}

	data, err := m.codec.Marshal(out)
	if err != nil {
		return &WriteError{Path: m.path, Op: "serialize payload", Err: err}
	}
	if err := m.rotateBackups(); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(m.path, data, m.mode, m.fsync); err != nil {
		return &WriteError{Path: m.path, Op: "write file", Err: err}
	}
	return nil
}

// Restore promotes backup slot to the managed file after verifying it
// parses. The pre-restore content rotates into slot 0 like any other
// write. Intended as the operator escape hatch after a CorruptionError.
func (m *Manager) Restore(slot int) error {
	if slot < 0 || slot >= m.backupCount {
		return fmt.Errorf("backup slot %d out of range [0, %d)", slot, m.backupCount)
	}

	lock, err := m.acquireLock(filelock.Exclusive)
	if err != nil {
		return err
	}
	defer lock.Release()

	src := BackupPath(m.path, slot)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup slot %d (%s): %w", slot, src, ErrNotFound)
		}
		return fmt.Errorf("failed to read backup slot %d: %w", slot, err)
	}

	var scratch any
	if err := m.codec.Unmarshal(data, &scratch); err != nil {
		return &CorruptionError{Path: src, Attempted: []string{src}}
	}

	if err := m.rotateBackups(); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(m.path, data, m.mode, m.fsync); err != nil {
		return &WriteError{Path: m.path, Op: "write file", Err: err}
	}
	return nil
}

// acquireLock takes the OS lock in the given mode, bounded by the
// configured timeout. Timeouts map to LockTimeoutError with no side
// effects.
func (m *Manager) acquireLock(mode filelock.Mode) (*filelock.Handle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.lockTimeout)
	defer cancel()

	lock, err := filelock.Acquire(ctx, m.lockPath, mode)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &LockTimeoutError{Path: m.path, Timeout: m.lockTimeout}
		}
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", m.path, err)
	}
	return lock, nil
}
