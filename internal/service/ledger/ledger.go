package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// Ledger tracks notification timestamps per camera and time slot. Each
// recorded notification adds weight to the camera's current slot; weights
// expire after the camera's decay window.
//
// Locking is per camera so event handlers for independent cameras do not
// contend.
type Ledger struct {
	mu      sync.RWMutex
	cameras map[string]*cameraState
}

type cameraState struct {
	mu        sync.Mutex
	slotCount int
	slots     map[int][]float64
}

func New() *Ledger {
	return &Ledger{
		cameras: make(map[string]*cameraState),
	}
}

// Configure ensures a camera exists with the given slot count. When the
// slot count changes, buckets are reshaped by index: in-range slots keep
// their timestamps, new slots start empty, out-of-range slots are dropped.
func (l *Ledger) Configure(camera string, slotCount int) {
	if slotCount < 1 {
		slotCount = 1
	}

	l.mu.Lock()
	st, ok := l.cameras[camera]
	if !ok {
		l.cameras[camera] = newCameraState(slotCount)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.slotCount == slotCount {
		return
	}
	reshaped := make(map[int][]float64, slotCount)
	for slot := 0; slot < slotCount; slot++ {
		if stamps, ok := st.slots[slot]; ok {
			reshaped[slot] = stamps
		} else {
			reshaped[slot] = nil
		}
	}
	st.slotCount = slotCount
	st.slots = reshaped
}

// Remove drops a camera's state entirely.
func (l *Ledger) Remove(camera string) {
	l.mu.Lock()
	delete(l.cameras, camera)
	l.mu.Unlock()
}

// Cameras returns the configured camera names, sorted.
func (l *Ledger) Cameras() []string {
	l.mu.RLock()
	names := make([]string, 0, len(l.cameras))
	for name := range l.cameras {
		names = append(names, name)
	}
	l.mu.RUnlock()
	sort.Strings(names)
	return names
}

// SlotCount returns the configured slot count for a camera.
func (l *Ledger) SlotCount(camera string) (int, bool) {
	st, ok := l.state(camera)
	if !ok {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.slotCount, true
}

// Record appends now to the camera's current slot bucket and returns the
// new bucket size. Unknown cameras are ignored.
func (l *Ledger) Record(camera string, now time.Time) (int, bool) {
	st, ok := l.state(camera)
	if !ok {
		return 0, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	slot := domain.SlotOf(now, st.slotCount)
	st.slots[slot] = append(st.slots[slot], float64(now.UnixNano())/1e9)
	return len(st.slots[slot]), true
}

// Prune removes timestamps older than now minus decaySeconds from one slot
// and returns the surviving timestamps. Pruning is idempotent.
func (l *Ledger) Prune(camera string, slot int, now time.Time, decaySeconds float64) []float64 {
	st, ok := l.state(camera)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.prune(slot, now, decaySeconds)
}

// PruneCamera prunes every slot of a camera and reports whether anything
// expired.
func (l *Ledger) PruneCamera(camera string, now time.Time, decaySeconds float64) bool {
	st, ok := l.state(camera)
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	changed := false
	for slot := 0; slot < st.slotCount; slot++ {
		before := len(st.slots[slot])
		st.prune(slot, now, decaySeconds)
		if len(st.slots[slot]) != before {
			changed = true
		}
	}
	return changed
}

// ActiveCount returns the number of unexpired timestamps in one slot,
// pruning it as a side effect.
func (l *Ledger) ActiveCount(camera string, slot int, now time.Time, decaySeconds float64) int {
	return len(l.Prune(camera, slot, now, decaySeconds))
}

// NormalizedCount returns the slot's activity count adjusted for the
// camera's ambient notification rate: the minimum count across all active
// slots is treated as baseline chatter and subtracted, so only bursts above
// baseline contribute weight. A slot with no activity always counts zero.
func (l *Ledger) NormalizedCount(camera string, slot int, now time.Time, decaySeconds float64) int {
	st, ok := l.state(camera)
	if !ok {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	counts := make([]int, st.slotCount)
	for s := 0; s < st.slotCount; s++ {
		counts[s] = len(st.prune(s, now, decaySeconds))
	}

	nonZero := make([]int, 0, len(counts))
	for _, c := range counts {
		if c > 0 {
			nonZero = append(nonZero, c)
		}
	}
	if len(nonZero) == 0 {
		return 0
	}

	// Subtract baseline only when several slots are active; a single
	// active slot has no ambient rate to compare against.
	baseline := 0
	if len(nonZero) > 1 {
		baseline = nonZero[0]
		for _, c := range nonZero[1:] {
			if c < baseline {
				baseline = c
			}
		}
	}

	if slot < 0 || slot >= st.slotCount {
		return 0
	}
	current := counts[slot]
	if current == 0 {
		return 0
	}
	if normalized := current - baseline; normalized > 0 {
		return normalized
	}
	return 0
}

// Snapshot exports all buckets for persistence.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.RLock()
	states := make(map[string]*cameraState, len(l.cameras))
	for name, st := range l.cameras {
		states[name] = st
	}
	l.mu.RUnlock()

	snap := make(domain.LedgerSnapshot, len(states))
	for name, st := range states {
		st.mu.Lock()
		slots := make(map[int][]float64, st.slotCount)
		for slot, stamps := range st.slots {
			slots[slot] = append([]float64(nil), stamps...)
		}
		st.mu.Unlock()
		snap[name] = slots
	}
	return snap
}

// Restore loads a persisted snapshot into the ledger, keeping only cameras
// that are configured and slot indexes within each camera's slot count.
func (l *Ledger) Restore(snap domain.LedgerSnapshot) {
	for camera, slots := range snap {
		st, ok := l.state(camera)
		if !ok {
			continue
		}
		st.mu.Lock()
		for slot, stamps := range slots {
			if slot < 0 || slot >= st.slotCount {
				continue
			}
			st.slots[slot] = append([]float64(nil), stamps...)
		}
		st.mu.Unlock()
	}
}

func (l *Ledger) state(camera string) (*cameraState, bool) {
	l.mu.RLock()
	st, ok := l.cameras[camera]
	l.mu.RUnlock()
	return st, ok
}

func newCameraState(slotCount int) *cameraState {
	slots := make(map[int][]float64, slotCount)
	for slot := 0; slot < slotCount; slot++ {
		slots[slot] = nil
	}
	return &cameraState{
		slotCount: slotCount,
		slots:     slots,
	}
}

// prune requires st.mu to be held.
func (st *cameraState) prune(slot int, now time.Time, decaySeconds float64) []float64 {
	if slot < 0 || slot >= st.slotCount {
		return nil
	}
	cutoff := float64(now.UnixNano())/1e9 - decaySeconds
	stamps := st.slots[slot]
	active := stamps[:0]
	for _, ts := range stamps {
		if ts > cutoff {
			active = append(active, ts)
		}
	}
	st.slots[slot] = active
	return active
}
