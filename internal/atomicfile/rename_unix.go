//go:build !windows

package atomicfile

import (
	"fmt"
	"os"
)

// atomicRenameWindows is a stub for non-Windows platforms.
// It should never be called on non-Windows systems.
func atomicRenameWindows(oldpath, newpath string) error {
	return fmt.Errorf("atomicRenameWindows called on non-Windows platform")
}

// syncDir forces the directory entry to stable storage so a freshly
// created or renamed file survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
