// Package atomicfile writes files so that the destination path only ever
// holds fully written content: the payload goes to a temporary sibling
// file which is flushed, closed, and atomically renamed into place.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// testHookCrashBeforeRename is a test-only hook to simulate a crash
// during the critical window between writing the temp file and renaming it.
var testHookCrashBeforeRename func()

// SetTestHookCrashBeforeRename sets the test hook for crash simulation.
// This is only for testing purposes.
func SetTestHookCrashBeforeRename(hook func()) {
	testHookCrashBeforeRename = hook
}

// RenameError wraps a rename error with the temporary file path for test inspection.
type RenameError struct {
	Err      error
	tempPath string
}

func (e RenameError) Error() string    { return e.Err.Error() }
func (e RenameError) TempPath() string { return e.tempPath }
func (e RenameError) Unwrap() error    { return e.Err }

// tempPattern is the os.CreateTemp pattern for a temporary sibling of base:
// dot-prefixed so it stays out of casual directory listings, with a unique
// middle segment and a .tmp marker.
func tempPattern(base string) string {
	return "." + base + ".*.tmp"
}

// IsTempFile reports whether name is a temporary sibling of base, as
// produced by WriteFile. Used by cleanup scans for orphaned temp files.
func IsTempFile(name, base string) bool {
	return strings.HasPrefix(name, "."+base+".") && strings.HasSuffix(name, ".tmp")
}

// WriteFile writes data to path via a temporary file in the same directory
// and an atomic rename. When sync is true the data (and the directory
// entry, where the platform allows) is forced to stable storage before the
// rename, so a committed write survives power loss.
//
// On any failure the temporary file is removed and path is untouched.
func WriteFile(path string, data []byte, perm os.FileMode, sync bool) error {
	// Ensure the target directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Create temp file in the same directory to guarantee atomic rename works.
	tempFile, err := os.CreateTemp(dir, tempPattern(filepath.Base(path)))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	// Ensure the temp file is removed on any error path.
	// On success, the rename operation moves it, so there is nothing to remove.
	var success bool
	defer func() {
		if !success {
			if err := os.Remove(tempFile.Name()); err != nil && !os.IsNotExist(err) {
				log.WithFields(log.Fields{"path": tempFile.Name(), "error": err}).
					Warn("failed to remove temporary file")
			}
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if sync {
		if err := tempFile.Sync(); err != nil {
			tempFile.Close()
			return fmt.Errorf("failed to sync temp file: %w", err)
		}
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %q: %w", tempFile.Name(), err)
	}
	if err := os.Chmod(tempFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if sync {
		if err := syncDir(dir); err != nil {
			return fmt.Errorf("failed to sync directory: %w", err)
		}
	}

	// Test hook for crash simulation
	if testHookCrashBeforeRename != nil {
		testHookCrashBeforeRename() // Panic will occur here if hook is set
	}

	// Perform the platform-specific atomic rename.
	var renameErr error
	if runtime.GOOS == "windows" {
		renameErr = atomicRenameWindows(tempFile.Name(), path)
	} else {
		renameErr = os.Rename(tempFile.Name(), path)
	}
	if renameErr != nil {
		return RenameError{Err: renameErr, tempPath: tempFile.Name()}
	}
	success = true

	// The rename has committed; a failed directory sync at this point cannot
	// undo it, so it is surfaced as a warning rather than a write failure.
	if sync {
		if err := syncDir(dir); err != nil {
			log.WithFields(log.Fields{"path": dir, "error": err}).
				Warn("failed to sync directory after rename")
		}
	}
	return nil
}
