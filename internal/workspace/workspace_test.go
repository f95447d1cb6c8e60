package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareResetsDirectory(t *testing.T) {
	mgr, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dir, err := mgr.Prepare("dep-1")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	stale := filepath.Join(dir, "stale.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	again, err := mgr.Prepare("dep-1")
	if err != nil {
		t.Fatalf("Prepare again: %v", err)
	}
	if again != dir {
		t.Fatalf("expected same dir, got %s and %s", dir, again)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file to be removed, got %v", err)
	}
}

func TestPrepareRejectsTraversal(t *testing.T) {
	mgr, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := mgr.Prepare(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestCleanupRefusesOutsideRoot(t *testing.T) {
	mgr, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mgr.Cleanup(t.TempDir()); err == nil {
		t.Fatal("expected refusal for path outside root")
	}
	if err := mgr.Cleanup(mgr.Root()); err == nil {
		t.Fatal("expected refusal for the root itself")
	}
	dir, err := mgr.Prepare("dep-2")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := mgr.Cleanup(dir); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, got %v", err)
	}
}
