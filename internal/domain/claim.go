package domain

import (
	"context"
	"time"
)

// Claim is a signed authorization header set for one push-service audience.
// Claims are cached by the dispatch worker and regenerated after expiry.
type Claim struct {
	Headers   map[string]string
	ExpiresAt time.Time
}

func (c Claim) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ClaimSigner produces signed authorization headers for an audience. The
// engine never signs claims itself; signing is an external service.
type ClaimSigner interface {
	Sign(ctx context.Context, audience string, expiry time.Time) (map[string]string, error)
}
