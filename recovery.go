package safefile

import (
	"fmt"
	"os"
	"reflect"

	"github.com/sirupsen/logrus"
)

// LoadInfo describes where a successful load's content came from.
type LoadInfo struct {
	// Path is the file whose content was parsed.
	Path string
	// RecoveredSlot is the backup slot that supplied the content, or -1
	// for a clean read of the main file.
	RecoveredSlot int
}

// Recovered reports whether the content came from a backup slot rather
// than the main file.
func (i *LoadInfo) Recovered() bool { return i.RecoveredSlot >= 0 }

// decodeInto parses data into a fresh value of out's type and copies the
// result into out only when the whole candidate parses. A corrupt file
// whose prefix decodes before the error must not leave residue fields in
// out that a later, successfully parsed candidate would not overwrite.
func (m *Manager) decodeInto(data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		// Not a destination we can stage a scratch value for; let the
		// codec report the bad target.
		return m.codec.Unmarshal(data, out)
	}
	fresh := reflect.New(rv.Type().Elem())
	if err := m.codec.Unmarshal(data, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// loadLocked parses the main file, cascading through the backup ring
// newest-first on parse failure. Callers hold the lock. A recovery is
// logged at warning level; it is never silent.
func (m *Manager) loadLocked(out any) (*LoadInfo, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", m.path, err)
	}

	parseErr := m.decodeInto(data, out)
	if parseErr == nil {
		return &LoadInfo{Path: m.path, RecoveredSlot: -1}, nil
	}

	m.log.WithFields(logrus.Fields{
		"path":  m.path,
		"error": parseErr,
	}).Warn("main file failed to parse, trying backups")

	attempted := []string{m.path}
	for slot := 0; slot < m.backupCount; slot++ {
		p := BackupPath(m.path, slot)
		data, err := os.ReadFile(p)
		if err != nil {
			// A slot that could not be read was never parsed, so it is
			// not recorded as attempted.
			if !os.IsNotExist(err) {
				m.log.WithFields(logrus.Fields{
					"backup": p,
					"slot":   slot,
					"error":  err,
				}).Warn("backup slot unreadable")
			}
			continue
		}
		attempted = append(attempted, p)
		if err := m.decodeInto(data, out); err != nil {
			continue
		}
		m.log.WithFields(logrus.Fields{
			"path":   m.path,
			"backup": p,
			"slot":   slot,
		}).Warn("recovered content from backup")
		return &LoadInfo{Path: p, RecoveredSlot: slot}, nil
	}

	return nil, &CorruptionError{Path: m.path, Attempted: attempted}
}
