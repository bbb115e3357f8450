package domain

import (
	"context"
	"strings"
)

// PushRegistration is one browser push endpoint registered by a user.
type PushRegistration struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// SubscriptionRegistry is the external store of push registrations. The
// engine only reads and iterates it, except for overwrite-on-revocation of
// expired endpoints.
type SubscriptionRegistry interface {
	Users(ctx context.Context) ([]string, error)
	RegistrationsForUser(ctx context.Context, user string) ([]PushRegistration, error)
	AddRegistration(ctx context.Context, user string, reg PushRegistration) error
	ReplaceRegistrations(ctx context.Context, user string, regs []PushRegistration) error
}

// Audience derives the claim audience from a push endpoint: the scheme and
// host, i.e. the prefix up to the first path separator after the scheme.
func Audience(endpoint string) string {
	if len(endpoint) <= 10 {
		return endpoint
	}
	if idx := strings.Index(endpoint[10:], "/"); idx >= 0 {
		return endpoint[:10+idx]
	}
	return endpoint
}
