package domain

import "context"

// Delivery status codes the engine reacts to. Everything else is either
// success (2xx) or a logged failure.
const (
	StatusEndpointNotFound = 404
	StatusEndpointGone     = 410
)

// DeliveryTransport performs the actual push delivery to one endpoint and
// reports the upstream status code. The engine treats it as a black box;
// timeouts are the transport's responsibility.
type DeliveryTransport interface {
	Send(ctx context.Context, endpoint string, headers map[string]string, ttl int, payload []byte) (int, error)
}

// DeliverySucceeded reports whether a transport status code counts as a
// successful delivery.
func DeliverySucceeded(status int) bool {
	return status >= 200 && status < 300
}

// EndpointExpired reports whether a transport status code means the
// registration should be revoked.
func EndpointExpired(status int) bool {
	return status == StatusEndpointNotFound || status == StatusEndpointGone
}
