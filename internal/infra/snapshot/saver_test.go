package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

type countingStore struct {
	mu     sync.Mutex
	writes int
	fail   bool
}

func (s *countingStore) Load(context.Context) (domain.LedgerSnapshot, error) {
	return domain.LedgerSnapshot{}, nil
}

func (s *countingStore) Store(context.Context, domain.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrRedisConnection
	}
	s.writes++
	return nil
}

func (s *countingStore) Ping(context.Context) error { return nil }
func (s *countingStore) Close() error               { return nil }

func (s *countingStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newTestSaver(store *countingStore) (*Saver, *time.Time) {
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	saver := NewSaver(store, func() domain.LedgerSnapshot {
		return domain.LedgerSnapshot{"cam": {0: {1.0}}}
	}, 30*time.Second, discardLogger())
	saver.now = func() time.Time { return current }
	return saver, &current
}

func TestSaverDebouncesWrites(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	saver, current := newTestSaver(store)

	// Clean saver: nothing to write.
	if saver.Save(ctx, false) {
		t.Error("Save() wrote with no dirty state")
	}

	saver.MarkDirty()
	if !saver.Save(ctx, false) {
		t.Fatal("Save() skipped a due write")
	}

	// Dirty again immediately: inside the debounce window.
	saver.MarkDirty()
	*current = current.Add(5 * time.Second)
	if saver.Save(ctx, false) {
		t.Error("Save() wrote inside the debounce interval")
	}

	// Past the interval the pending write goes through.
	*current = current.Add(30 * time.Second)
	if !saver.Save(ctx, false) {
		t.Error("Save() skipped after the debounce interval elapsed")
	}

	if got := store.writeCount(); got != 2 {
		t.Errorf("store saw %d writes, want 2", got)
	}
}

func TestSaverForceBypassesDebounce(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	saver, _ := newTestSaver(store)

	if !saver.Save(ctx, true) {
		t.Error("forced Save() did not write")
	}
	if !saver.Save(ctx, true) {
		t.Error("second forced Save() did not write")
	}
	if got := store.writeCount(); got != 2 {
		t.Errorf("store saw %d writes, want 2", got)
	}
}

func TestSaverRetainsDirtyOnFailure(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{fail: true}
	saver, current := newTestSaver(store)

	saver.MarkDirty()
	if saver.Save(ctx, false) {
		t.Error("Save() reported success despite store failure")
	}

	// The store recovers; the pending write is retried.
	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	*current = current.Add(time.Minute)
	if !saver.Save(ctx, false) {
		t.Error("Save() did not retry after store recovery")
	}
}
