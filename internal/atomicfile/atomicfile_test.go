package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFile(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		// Arrange
		tempDir := t.TempDir()
		filename := filepath.Join(tempDir, "test.json")
		data := []byte(`{"a":1}`)

		// Act
		err := WriteFile(filename, data, 0644, true)

		// Assert
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		readData, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("failed to read back file: %v", err)
		}
		if string(readData) != string(data) {
			t.Errorf("content mismatch: got %q, want %q", readData, data)
		}
	})

	t.Run("no temp file left behind", func(t *testing.T) {
		// Arrange
		tempDir := t.TempDir()
		filename := filepath.Join(tempDir, "test.json")

		// Act
		if err := WriteFile(filename, []byte("x"), 0644, false); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		// Assert
		entries, err := os.ReadDir(tempDir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".tmp") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})

	t.Run("overwrite replaces previous content", func(t *testing.T) {
		// Arrange
		tempDir := t.TempDir()
		filename := filepath.Join(tempDir, "test.json")
		if err := WriteFile(filename, []byte("old"), 0644, false); err != nil {
			t.Fatal(err)
		}

		// Act
		if err := WriteFile(filename, []byte("new"), 0644, false); err != nil {
			t.Fatalf("second WriteFile failed: %v", err)
		}

		// Assert
		readData, err := os.ReadFile(filename)
		if err != nil {
			t.Fatal(err)
		}
		if string(readData) != "new" {
			t.Errorf("content mismatch: got %q, want %q", readData, "new")
		}
	})

	t.Run("rename failure and cleanup", func(t *testing.T) {
		// Arrange: A directory where the target file should be makes the
		// rename fail after the temp file has been fully written.
		tempDir := t.TempDir()
		filename := filepath.Join(tempDir, "test.json")
		if err := os.Mkdir(filename, 0755); err != nil {
			t.Fatalf("failed to create conflicting directory: %v", err)
		}

		// Act
		err := WriteFile(filename, []byte("data"), 0644, false)

		// Assert
		if err == nil {
			t.Fatal("expected an error but got none")
		}
		var renameErr RenameError
		if !errors.As(err, &renameErr) {
			t.Fatalf("expected RenameError, got %T: %v", err, err)
		}
		if _, statErr := os.Stat(renameErr.TempPath()); !os.IsNotExist(statErr) {
			t.Errorf("temp file %q was not cleaned up after rename failure", renameErr.TempPath())
		}
	})

	t.Run("write to nested directory", func(t *testing.T) {
		// Arrange
		tempDir := t.TempDir()
		filename := filepath.Join(tempDir, "a", "b", "c", "test.json")
		data := []byte("nested")

		// Act
		err := WriteFile(filename, data, 0644, false)

		// Assert
		if err != nil {
			t.Fatalf("WriteFile with nested dirs failed: %v", err)
		}
		readData, err := os.ReadFile(filename)
		if err != nil {
			t.Fatal(err)
		}
		if string(readData) != string(data) {
			t.Errorf("content mismatch: got %q, want %q", readData, data)
		}
	})

	t.Run("crash before rename leaves target untouched", func(t *testing.T) {
		// Arrange
		tempDir := t.TempDir()
		filename := filepath.Join(tempDir, "test.json")
		if err := WriteFile(filename, []byte("before"), 0644, false); err != nil {
			t.Fatal(err)
		}
		SetTestHookCrashBeforeRename(func() { panic("simulated crash") })
		defer SetTestHookCrashBeforeRename(nil)

		// Act
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected the crash hook to panic")
				}
			}()
			_ = WriteFile(filename, []byte("after"), 0644, false)
		}()

		// Assert: Old content survives and the temp file is gone
		readData, err := os.ReadFile(filename)
		if err != nil {
			t.Fatal(err)
		}
		if string(readData) != "before" {
			t.Errorf("target was modified by an interrupted write: %q", readData)
		}
		entries, err := os.ReadDir(tempDir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if e.Name() != "test.json" {
				t.Errorf("unexpected leftover file: %s", e.Name())
			}
		}
	})
}

func TestIsTempFile(t *testing.T) {
	cases := []struct {
		name string
		base string
		want bool
	}{
		{".data.json.123456.tmp", "data.json", true},
		{".data.json.x.tmp", "data.json", true},
		{"data.json", "data.json", false},
		{"data.json.backup", "data.json", false},
		{".data.json.123456", "data.json", false},
		{".other.json.123456.tmp", "data.json", false},
	}
	for _, tc := range cases {
		if got := IsTempFile(tc.name, tc.base); got != tc.want {
			t.Errorf("IsTempFile(%q, %q) = %t, want %t", tc.name, tc.base, got, tc.want)
		}
	}
}
