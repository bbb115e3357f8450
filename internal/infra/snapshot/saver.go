package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// Saver debounces snapshot writes. Event handlers call MarkDirty and Save
// on every delivery; the saver only touches the store when forced or when
// the debounce interval has elapsed since the last write, so bursts of
// notifications do not hammer the backend.
type Saver struct {
	store    domain.SnapshotStore
	source   func() domain.LedgerSnapshot
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	dirty     bool
	lastWrite time.Time
	now       func() time.Time
}

func NewSaver(store domain.SnapshotStore, source func() domain.LedgerSnapshot, interval time.Duration, logger *slog.Logger) *Saver {
	return &Saver{
		store:    store,
		source:   source,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// MarkDirty notes that the ledger changed without writing anything.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Save writes the current snapshot when force is set, or when the ledger is
// dirty and the debounce interval has elapsed. It reports whether a write
// happened. Store failures are logged and leave the dirty flag set so the
// next attempt retries.
func (s *Saver) Save(ctx context.Context, force bool) bool {
	s.mu.Lock()
	now := s.now()
	due := s.dirty && now.Sub(s.lastWrite) >= s.interval
	if !force && !due {
		s.mu.Unlock()
		return false
	}
	snap := s.source()
	s.mu.Unlock()

	if err := s.store.Store(ctx, snap); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist ledger snapshot",
			slog.String("error", err.Error()))
		return false
	}

	s.mu.Lock()
	s.dirty = false
	s.lastWrite = now
	s.mu.Unlock()
	return true
}
