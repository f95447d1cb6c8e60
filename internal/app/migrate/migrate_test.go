package migrate

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsEmptyDSN(t *testing.T) {
	if _, err := New("", "", nil); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestNewRejectsMissingDirectory(t *testing.T) {
	if _, err := New("postgres://localhost/db", filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing migrations dir")
	}
}

func TestNewDefaultsToEmbeddedMigrations(t *testing.T) {
	runner, err := New("postgres://localhost/db", "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entries, err := fs.ReadDir(runner.fsys, runner.dir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	var found bool
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".sql") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one embedded migration")
	}
}
