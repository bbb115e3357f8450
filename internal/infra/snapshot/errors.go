package snapshot

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrEncodeSnapshot  = errors.New("failed to encode ledger snapshot")
)
