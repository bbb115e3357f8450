package claimsigner

import (
	"context"
	"time"
)

// NoopSigner returns empty headers. Useful for local development against a
// push relay that does not validate VAPID claims.
type NoopSigner struct{}

func NewNoopSigner() *NoopSigner {
	return &NoopSigner{}
}

func (*NoopSigner) Sign(_ context.Context, _ string, _ time.Time) (map[string]string, error) {
	return map[string]string{}, nil
}
