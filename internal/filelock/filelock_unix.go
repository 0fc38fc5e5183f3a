//go:build !windows

package filelock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile attempts a non-blocking flock on the open descriptor in the
// requested mode.
func lockFile(f *os.File, mode Mode) error {
	how := unix.LOCK_EX
	if mode == Shared {
		how = unix.LOCK_SH
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrWouldBlock
		}
		return fmt.Errorf("failed to acquire file lock: %w", err)
	}
	return nil
}

// unlock releases the flock. Flock on unix doesn't return a meaningful
// error for LOCK_UN; closing the descriptor releases the lock anyway.
func unlock(f *os.File) error {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return nil
}
