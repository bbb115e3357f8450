package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

const snapshotKey = "notification:ledger:snapshot"

// RedisStore persists ledger snapshots in a single Redis key, for
// deployments where the engine has no stable local disk.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Load fetches the persisted snapshot. A missing key or corrupt payload
// yields an empty snapshot; only connectivity errors are returned.
func (s *RedisStore) Load(ctx context.Context) (domain.LedgerSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.InfoContext(ctx, "no ledger snapshot in redis, starting empty")
			return domain.LedgerSnapshot{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrRedisConnection, err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		s.logger.WarnContext(ctx, "corrupt ledger snapshot in redis, starting empty",
			slog.String("error", err.Error()))
		return domain.LedgerSnapshot{}, nil
	}
	return snap, nil
}

func (s *RedisStore) Store(ctx context.Context, snap domain.LedgerSnapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, snapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisConnection, err)
	}

	s.logger.DebugContext(ctx, "ledger snapshot written to redis",
		slog.Int("cameras", len(snap)))
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisConnection, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
