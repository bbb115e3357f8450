package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// Worker is the single consumer of the dispatch queue. It signs one claim
// per push-service audience, fans each notification out to the user's
// registered endpoints, and revokes endpoints the push service reports as
// gone.
type Worker struct {
	queue     *Queue
	registry  domain.SubscriptionRegistry
	signer    domain.ClaimSigner
	transport domain.DeliveryTransport
	logger    *slog.Logger

	pollInterval  time.Duration
	claimLifetime time.Duration
	metrics       WorkerMetrics

	mu     sync.Mutex
	claims map[string]domain.Claim

	done chan struct{}
	now  func() time.Time
}

// WorkerMetrics is the instrumentation surface the worker reports to.
type WorkerMetrics interface {
	RecordDequeued(ctx context.Context)
}

type WorkerOption func(*Worker)

func WithMetrics(m WorkerMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.pollInterval = d }
}

func WithClaimLifetime(d time.Duration) WorkerOption {
	return func(w *Worker) { w.claimLifetime = d }
}

func NewWorker(queue *Queue, registry domain.SubscriptionRegistry, signer domain.ClaimSigner, transport domain.DeliveryTransport, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:         queue,
		registry:      registry,
		signer:        signer,
		transport:     transport,
		logger:        logger,
		pollInterval:  time.Second,
		claimLifetime: time.Hour,
		claims:        make(map[string]domain.Claim),
		done:          make(chan struct{}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes the queue until it is closed and drained or ctx is
// cancelled. It is intended to run in its own goroutine; Join waits for it.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	w.logger.InfoContext(ctx, "dispatch worker started",
		slog.Duration("poll_interval", w.pollInterval),
		slog.Duration("claim_lifetime", w.claimLifetime))

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "dispatch worker stopping",
				slog.Int("pending", w.queue.Len()))
			return
		default:
		}

		notification, ok := w.queue.Poll(w.pollInterval)
		if !ok {
			w.logger.InfoContext(ctx, "dispatch queue drained, worker exiting")
			return
		}
		if notification == nil {
			continue
		}

		if w.metrics != nil {
			w.metrics.RecordDequeued(ctx)
		}
		w.dispatch(ctx, notification)
	}
}

// Join blocks until Run has returned.
func (w *Worker) Join() {
	<-w.done
}

// dispatch sends one notification to every registration of its user.
func (w *Worker) dispatch(ctx context.Context, n *domain.PendingNotification) {
	registrations, err := w.registry.RegistrationsForUser(ctx, n.User)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to load push registrations",
			slog.String("user", n.User),
			slog.String("error", err.Error()))
		return
	}
	if len(registrations) == 0 {
		w.logger.DebugContext(ctx, "no push registrations for user",
			slog.String("user", n.User))
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title":      n.Title,
		"message":    n.Message,
		"direct_url": n.DirectURL,
		"image":      n.Image,
		"id":         n.EventID,
		"type":       n.Class.String(),
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to encode notification payload",
			slog.String("id", n.ID),
			slog.String("error", err.Error()))
		return
	}

	var expired []string
	for _, reg := range registrations {
		if w.send(ctx, n, reg, payload) {
			continue
		}
		expired = append(expired, reg.Endpoint)
	}

	if len(expired) > 0 {
		w.revoke(ctx, n.User, registrations, expired)
	}
}

// send delivers to one endpoint. It reports false only when the endpoint
// should be revoked; transient failures are logged and kept.
func (w *Worker) send(ctx context.Context, n *domain.PendingNotification, reg domain.PushRegistration, payload []byte) bool {
	headers, err := w.claimHeaders(ctx, domain.Audience(reg.Endpoint))
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to sign claim",
			slog.String("audience", domain.Audience(reg.Endpoint)),
			slog.String("error", err.Error()))
		return true
	}

	status, err := w.transport.Send(ctx, reg.Endpoint, headers, n.TTL, payload)
	if err != nil {
		w.logger.WarnContext(ctx, "push delivery failed",
			slog.String("user", n.User),
			slog.String("id", n.ID),
			slog.String("error", err.Error()))
		return true
	}

	switch {
	case domain.DeliverySucceeded(status):
		w.logger.DebugContext(ctx, "notification delivered",
			slog.String("user", n.User),
			slog.String("id", n.ID),
			slog.Int("status", status))
		return true
	case domain.EndpointExpired(status):
		w.logger.InfoContext(ctx, "push endpoint expired",
			slog.String("user", n.User),
			slog.Int("status", status))
		return false
	default:
		w.logger.WarnContext(ctx, "push delivery rejected",
			slog.String("user", n.User),
			slog.String("id", n.ID),
			slog.Int("status", status))
		return true
	}
}

// claimHeaders returns cached claim headers for an audience, signing a new
// claim when the cached one has expired.
func (w *Worker) claimHeaders(ctx context.Context, audience string) (map[string]string, error) {
	now := w.now()

	w.mu.Lock()
	claim, ok := w.claims[audience]
	w.mu.Unlock()
	if ok && !claim.Expired(now) {
		return withUrgency(claim.Headers), nil
	}

	expiry := now.Add(w.claimLifetime)
	headers, err := w.signer.Sign(ctx, audience, expiry)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.claims[audience] = domain.Claim{Headers: headers, ExpiresAt: expiry}
	w.mu.Unlock()

	return withUrgency(headers), nil
}

func withUrgency(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["urgency"] = "high"
	return out
}

// revoke overwrites the user's registrations without the expired endpoints.
func (w *Worker) revoke(ctx context.Context, user string, registrations []domain.PushRegistration, expired []string) {
	gone := make(map[string]struct{}, len(expired))
	for _, endpoint := range expired {
		gone[endpoint] = struct{}{}
	}

	kept := make([]domain.PushRegistration, 0, len(registrations))
	for _, reg := range registrations {
		if _, ok := gone[reg.Endpoint]; !ok {
			kept = append(kept, reg)
		}
	}

	if err := w.registry.ReplaceRegistrations(ctx, user, kept); err != nil {
		w.logger.ErrorContext(ctx, "failed to revoke expired registrations",
			slog.String("user", user),
			slog.Int("expired", len(expired)),
			slog.String("error", err.Error()))
		return
	}
	w.logger.InfoContext(ctx, "revoked expired push registrations",
		slog.String("user", user),
		slog.Int("expired", len(expired)),
		slog.Int("remaining", len(kept)))
}
