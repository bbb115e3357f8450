package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// FileStore persists ledger snapshots as a single JSON document. Slot
// indexes are serialized as string keys so the on-disk format round-trips
// through ordinary JSON objects.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the snapshot file. A missing or unreadable file yields an
// empty snapshot so a fresh deployment starts clean.
func (s *FileStore) Load(ctx context.Context) (domain.LedgerSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.InfoContext(ctx, "no ledger snapshot on disk, starting empty",
				slog.String("path", s.path))
			return domain.LedgerSnapshot{}, nil
		}
		s.logger.WarnContext(ctx, "failed to read ledger snapshot, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return domain.LedgerSnapshot{}, nil
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		s.logger.WarnContext(ctx, "corrupt ledger snapshot, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return domain.LedgerSnapshot{}, nil
	}
	return snap, nil
}

// Store writes the snapshot atomically via a temp file in the same
// directory followed by a rename.
func (s *FileStore) Store(ctx context.Context, snap domain.LedgerSnapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	s.logger.DebugContext(ctx, "ledger snapshot written",
		slog.String("path", s.path),
		slog.Int("cameras", len(snap)))
	return nil
}

func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot directory %s is not a directory", dir)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// The wire form keys slots by decimal strings.
type wireSnapshot map[string]map[string][]float64

func encodeSnapshot(snap domain.LedgerSnapshot) ([]byte, error) {
	wire := make(wireSnapshot, len(snap))
	for camera, slots := range snap {
		ws := make(map[string][]float64, len(slots))
		for slot, stamps := range slots {
			ws[strconv.Itoa(slot)] = stamps
		}
		wire[camera] = ws
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeSnapshot, err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (domain.LedgerSnapshot, error) {
	var wire wireSnapshot
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	snap := make(domain.LedgerSnapshot, len(wire))
	for camera, slots := range wire {
		cs := make(map[int][]float64, len(slots))
		for key, stamps := range slots {
			slot, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("invalid slot key %q: %w", key, err)
			}
			cs[slot] = stamps
		}
		snap[camera] = cs
	}
	return snap, nil
}
