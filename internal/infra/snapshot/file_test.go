package snapshot

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weights.json")
	store := NewFileStore(path, discardLogger())

	snap := domain.LedgerSnapshot{
		"front_door": {
			8:  {1709991000.5, 1709991060.25},
			14: {1710012345.0},
		},
		"yard": {
			0: {1709990000.0},
		},
	}

	if err := store.Store(ctx, snap); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("loaded %d cameras, want 2", len(loaded))
	}
	got := loaded["front_door"][8]
	if len(got) != 2 || got[0] != 1709991000.5 || got[1] != 1709991060.25 {
		t.Errorf("front_door slot 8 = %v", got)
	}
	if len(loaded["yard"][0]) != 1 {
		t.Errorf("yard slot 0 = %v", loaded["yard"][0])
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), discardLogger())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Load() of missing file = %v, want empty", snap)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(path, discardLogger())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() of corrupt file must not fail: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Load() of corrupt file = %v, want empty", snap)
	}
}

func TestFileStoreOverwritesAtomically(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	store := NewFileStore(path, discardLogger())

	if err := store.Store(ctx, domain.LedgerSnapshot{"a": {0: {1.0}}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Store(ctx, domain.LedgerSnapshot{"b": {1: {2.0}}}); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loaded["a"]; ok {
		t.Error("old snapshot content survived overwrite")
	}
	if _, ok := loaded["b"]; !ok {
		t.Error("new snapshot content missing")
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("snapshot dir has %d entries, want only the snapshot", len(entries))
	}
}
