package domain

import "context"

// LedgerSnapshot is the persisted form of the weight ledger: camera name to
// slot index to notification timestamps in epoch seconds.
type LedgerSnapshot map[string]map[int][]float64

// Clone returns a deep copy of the snapshot.
func (s LedgerSnapshot) Clone() LedgerSnapshot {
	out := make(LedgerSnapshot, len(s))
	for camera, slots := range s {
		cs := make(map[int][]float64, len(slots))
		for slot, stamps := range slots {
			cs[slot] = append([]float64(nil), stamps...)
		}
		out[camera] = cs
	}
	return out
}

// SnapshotStore is a durable backend for ledger snapshots. Load must never
// be fatal: a missing or corrupt record yields an empty snapshot.
type SnapshotStore interface {
	Load(ctx context.Context) (LedgerSnapshot, error)
	Store(ctx context.Context, snap LedgerSnapshot) error
	Ping(ctx context.Context) error
	Close() error
}
