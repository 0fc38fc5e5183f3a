package safefile

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func corrupt(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("{{{ not json"), 0644))
}

func TestLoad_RecoversFromNewestBackup(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(payload{A: 1}))
	require.NoError(t, m.Save(payload{A: 2}))

	corrupt(t, m.Path())

	var got payload
	info, err := m.Load(&got)
	require.NoError(t, err)
	require.True(t, info.Recovered())
	require.Equal(t, 0, info.RecoveredSlot)
	require.Equal(t, BackupPath(m.Path(), 0), info.Path)
	require.Equal(t, 1, got.A)
}

func TestLoad_CascadesToOlderBackup(t *testing.T) {
	m := newTestManager(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Save(payload{A: i}))
	}
	// main=3, slot0=2, slot1=1
	corrupt(t, m.Path())
	corrupt(t, BackupPath(m.Path(), 0))

	var got payload
	info, err := m.Load(&got)
	require.NoError(t, err)
	require.Equal(t, 1, info.RecoveredSlot)
	require.Equal(t, 1, got.A)
}

func TestLoad_AllCorrupt(t *testing.T) {
	m := newTestManager(t)
	for i := 1; i <= 4; i++ {
		require.NoError(t, m.Save(payload{A: i}))
	}
	corrupt(t, m.Path())
	for slot := 0; slot < DefaultBackupCount; slot++ {
		corrupt(t, BackupPath(m.Path(), slot))
	}

	var got payload
	_, err := m.Load(&got)

	var corruptionErr *CorruptionError
	require.ErrorAs(t, err, &corruptionErr)
	require.Equal(t, m.Path(), corruptionErr.Path)

	// Every attempted path is enumerated, newest first.
	want := []string{m.Path()}
	for slot := 0; slot < DefaultBackupCount; slot++ {
		want = append(want, BackupPath(m.Path(), slot))
	}
	require.Equal(t, want, corruptionErr.Attempted)
}

func TestLoad_CorruptWithNoBackups(t *testing.T) {
	m := newTestManager(t, WithBackupCount(0))
	require.NoError(t, m.Save(payload{A: 1}))
	corrupt(t, m.Path())

	var got payload
	_, err := m.Load(&got)

	var corruptionErr *CorruptionError
	require.ErrorAs(t, err, &corruptionErr)
	require.Equal(t, []string{m.Path()}, corruptionErr.Attempted)
}

func TestLoad_MissingBackupSlotsAreSkipped(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(payload{A: 1}))
	require.NoError(t, m.Save(payload{A: 2}))
	// Only slot 0 exists. Corrupt main and slot 0: the cascade must skip
	// the empty slots and report only what it actually tried.
	corrupt(t, m.Path())
	corrupt(t, BackupPath(m.Path(), 0))

	var got payload
	_, err := m.Load(&got)

	var corruptionErr *CorruptionError
	require.ErrorAs(t, err, &corruptionErr)
	require.Equal(t, []string{m.Path(), BackupPath(m.Path(), 0)}, corruptionErr.Attempted)
}

func TestLoad_RecoveredValueCarriesNoResidue(t *testing.T) {
	// A corrupt main file whose prefix decodes before the trailing garbage
	// must not leave its fields behind in the recovered result.
	m := newTestManager(t)
	require.NoError(t, m.Save(payload{A: 1}))
	require.NoError(t, m.Save(payload{A: 1}))
	require.NoError(t, os.WriteFile(m.Path(),
		[]byte(`{"a": 99, "name": "stray"} trailing garbage`), 0644))

	var got payload
	info, err := m.Load(&got)
	require.NoError(t, err)
	require.Equal(t, 0, info.RecoveredSlot)
	require.Equal(t, payload{A: 1}, got, "result must be exactly the backup's content")
}

func TestLoad_CascadeDiscardsPartialParses(t *testing.T) {
	m := newTestManager(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Save(payload{A: i}))
	}
	// main=3, slot0=2, slot1=1; main and slot 0 each decode partially
	// before failing.
	require.NoError(t, os.WriteFile(m.Path(),
		[]byte(`{"a": 99, "name": "stray"} x`), 0644))
	require.NoError(t, os.WriteFile(BackupPath(m.Path(), 0),
		[]byte(`{"name": "older-stray"} x`), 0644))

	var got payload
	info, err := m.Load(&got)
	require.NoError(t, err)
	require.Equal(t, 1, info.RecoveredSlot)
	require.Equal(t, payload{A: 1}, got)
}

func TestLoad_UnreadableSlotIsSkipped(t *testing.T) {
	m := newTestManager(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Save(payload{A: i}))
	}
	// main=3, slot0=2, slot1=1. Replace slot 0 with a directory so its
	// content cannot be read at all.
	corrupt(t, m.Path())
	require.NoError(t, os.Remove(BackupPath(m.Path(), 0)))
	require.NoError(t, os.Mkdir(BackupPath(m.Path(), 0), 0755))

	var got payload
	info, err := m.Load(&got)
	require.NoError(t, err)
	require.Equal(t, 1, info.RecoveredSlot)
	require.Equal(t, 1, got.A)
}

func TestLoad_AttemptedListsOnlyParsedPaths(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(payload{A: 1}))
	corrupt(t, m.Path())
	require.NoError(t, os.Mkdir(BackupPath(m.Path(), 0), 0755))

	var got payload
	_, err := m.Load(&got)

	var corruptionErr *CorruptionError
	require.ErrorAs(t, err, &corruptionErr)
	// Slot 0 could not be read, so its content was never parse-attempted.
	require.Equal(t, []string{m.Path()}, corruptionErr.Attempted)
}

func TestLoad_RecoveryIsLoggedAsWarning(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	m := newTestManager(t, WithLogger(logger))
	require.NoError(t, m.Save(payload{A: 1}))
	require.NoError(t, m.Save(payload{A: 2}))
	corrupt(t, m.Path())

	var got payload
	_, err := m.Load(&got)
	require.NoError(t, err)

	var recovered bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "recovered content from backup" {
			recovered = true
			require.Equal(t, 0, entry.Data["slot"])
		}
	}
	require.True(t, recovered, "a backup recovery must be logged, never silent")
}
