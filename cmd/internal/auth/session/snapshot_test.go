package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func mustSnapshot(t *testing.T, path string) *FileSnapshot {
	t.Helper()

	snap, err := NewFileSnapshot(path)
	if err != nil {
		t.Fatalf("NewFileSnapshot: %v", err)
	}
	return snap
}

func TestFileSnapshotRejectsEmptyPath(t *testing.T) {
	if _, err := NewFileSnapshot(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileSnapshotMissingFile(t *testing.T) {
	snap := mustSnapshot(t, filepath.Join(t.TempDir(), "sessions.json"))

	records, err := snap.Load()
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records, got %d", len(records))
	}
}

func TestMemoryStoreRestoresLiveSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")
	clock := newFakeClock()

	first, err := NewMemoryStore(DefaultConfig(), clock, mustSnapshot(t, path))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	rec, err := first.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A second store over the same file sees the session.
	second, err := NewMemoryStore(DefaultConfig(), clock, mustSnapshot(t, path))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, ok, err := second.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Get after restore: ok=%v err=%v", ok, err)
	}
	if got.OwnerID != "ada" || got.CSRFToken != rec.CSRFToken {
		t.Fatalf("restored record mismatch: %+v", got)
	}
}

func TestMemoryStoreSkipsDeadSnapshotRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")
	clock := newFakeClock()

	first, err := NewMemoryStore(DefaultConfig(), clock, mustSnapshot(t, path))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	rec, err := first.Create(ctx, "ada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Let the snapshotted session idle out before the restart.
	clock.Advance(DefaultConfig().IdleTimeout + time.Second)

	second, err := NewMemoryStore(DefaultConfig(), clock, mustSnapshot(t, path))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, ok, _ := second.Get(ctx, rec.ID); ok {
		t.Fatal("idle-expired snapshot record must not be restored")
	}
	n, err := second.CountActive(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountActive = %d err=%v, want 0", n, err)
	}
}
