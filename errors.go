package safefile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when the managed file does not exist.
// Callers typically respond by initializing default state.
var ErrNotFound = errors.New("file does not exist")

// LockTimeoutError is returned when another holder retained the file lock
// past the configured timeout. The operation had no side effects; the
// caller may retry or report that another instance is using the file.
type LockTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("%s: lock not acquired within %s: another process is using this file", e.Path, e.Timeout)
}

// Unwrap reports the timeout as context.DeadlineExceeded so callers can
// classify it with errors.Is.
func (e *LockTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// WriteError wraps an I/O failure during a save. Op names the phase that
// failed. The managed file is guaranteed unchanged.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: failed to %s: %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CorruptionError is returned when the main file and every existing backup
// slot failed to parse. Attempted lists every path whose content was tried,
// newest first.
type CorruptionError struct {
	Path      string
	Attempted []string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: no parsable content in file or backups (attempted: %s)", e.Path, strings.Join(e.Attempted, ", "))
}
