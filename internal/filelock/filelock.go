// Package filelock provides cross-process advisory locking on a path,
// with shared and exclusive modes and deadline-bounded acquisition.
//
// Platform backends are selected at build time: flock(2) on unix-like
// systems, LockFileEx on Windows. Both support a true shared (reader)
// mode, so readers never serialize with each other.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Mode selects shared (reader) or exclusive (writer) locking.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// ErrWouldBlock signals that a non-blocking lock attempt failed because
// another process holds a conflicting lock.
var ErrWouldBlock = errors.New("file lock would block")

// retryInterval is how often Acquire re-attempts a contended lock.
const retryInterval = 10 * time.Millisecond

// Handle represents a held lock. Release must be called exactly once,
// typically via defer at the acquisition site.
type Handle struct {
	f *os.File
}

// Path returns the lock artifact's path.
func (h *Handle) Path() string {
	if h == nil || h.f == nil {
		return ""
	}
	return h.f.Name()
}

// TryAcquire makes a single non-blocking attempt to lock path.
// It returns ErrWouldBlock if another process holds a conflicting lock.
func TryAcquire(path string, mode Mode) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := lockFile(f, mode); err != nil {
		f.Close()
		return nil, err
	}
	return &Handle{f: f}, nil
}

// IsLocked reports whether path is currently locked, without creating
// the lock artifact: an absent artifact means nothing ever acquired the
// lock, so the answer is false. The checking descriptor is closed before
// returning and the artifact is never unlinked.
func IsLocked(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, Exclusive); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return true, nil
		}
		return false, err
	}
	unlock(f)
	return false, nil
}

// Acquire blocks until the lock is obtained or ctx expires. A contended
// lock is re-attempted every retryInterval; on expiry the ctx error is
// returned with no lock held.
func Acquire(ctx context.Context, path string, mode Mode) (*Handle, error) {
	for {
		h, err := TryAcquire(path, mode)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %s: %w", path, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

// Release unlocks and closes the handle. It is safe to call on a nil
// handle. The lock artifact is left on disk: unlinking it would let a
// waiter that already opened the old inode lock it while a fresh
// acquirer locks a newly created file, breaking mutual exclusion.
func (h *Handle) Release() error {
	if h == nil || h.f == nil {
		return nil
	}
	err1 := unlock(h.f)
	err2 := h.f.Close()
	h.f = nil
	return errors.Join(err1, err2)
}
