package safefile

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultLockTimeout bounds how long Save and Load wait for the file lock.
	DefaultLockTimeout = 5 * time.Second
	// DefaultBackupCount is the size of the backup ring.
	DefaultBackupCount = 3
	// DefaultFileMode is the permission applied to the managed file.
	DefaultFileMode = os.FileMode(0644)
)

// Option configures a Manager at construction time. A Manager is immutable
// afterwards.
type Option func(*Manager)

// WithLockTimeout bounds lock acquisition for every operation.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lockTimeout = d }
}

// WithBackupCount sets the size of the backup ring. Zero disables backups.
func WithBackupCount(n int) Option {
	return func(m *Manager) { m.backupCount = n }
}

// WithFsync controls whether writes are forced to stable storage before
// they commit. Disable only for ephemeral or test scenarios where
// durability is not required.
func WithFsync(enabled bool) Option {
	return func(m *Manager) { m.fsync = enabled }
}

// WithFileMode sets the permission applied to the managed file and its
// backups.
func WithFileMode(perm os.FileMode) Option {
	return func(m *Manager) { m.mode = perm }
}

// WithCodec replaces the default JSON codec.
func WithCodec(c Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithLogger replaces the default logrus standard logger. The manager logs
// backup recoveries and cleanup problems at warning level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = log }
}
