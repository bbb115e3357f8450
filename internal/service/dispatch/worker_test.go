package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

type stubRegistry struct {
	mu            sync.Mutex
	registrations map[string][]domain.PushRegistration
	replaced      map[string][]domain.PushRegistration
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		registrations: make(map[string][]domain.PushRegistration),
		replaced:      make(map[string][]domain.PushRegistration),
	}
}

func (s *stubRegistry) Users(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.registrations))
	for u := range s.registrations {
		users = append(users, u)
	}
	return users, nil
}

func (s *stubRegistry) RegistrationsForUser(_ context.Context, user string) ([]domain.PushRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registrations[user], nil
}

func (s *stubRegistry) AddRegistration(_ context.Context, user string, reg domain.PushRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[user] = append(s.registrations[user], reg)
	return nil
}

func (s *stubRegistry) ReplaceRegistrations(_ context.Context, user string, regs []domain.PushRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[user] = regs
	s.replaced[user] = regs
	return nil
}

type stubSigner struct {
	mu    sync.Mutex
	calls int
}

func (s *stubSigner) Sign(_ context.Context, audience string, _ time.Time) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return map[string]string{"authorization": "vapid " + audience}, nil
}

func (s *stubSigner) signCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type sentMessage struct {
	endpoint string
	headers  map[string]string
	ttl      int
	payload  []byte
}

type stubTransport struct {
	mu       sync.Mutex
	statuses map[string]int
	sent     []sentMessage
}

func newStubTransport() *stubTransport {
	return &stubTransport{statuses: make(map[string]int)}
}

func (s *stubTransport) Send(_ context.Context, endpoint string, headers map[string]string, ttl int, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{endpoint: endpoint, headers: headers, ttl: ttl, payload: payload})
	if status, ok := s.statuses[endpoint]; ok {
		return status, nil
	}
	return 201, nil
}

func (s *stubTransport) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runOne(t *testing.T, w *Worker, q *Queue) {
	t.Helper()
	q.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.Run(ctx)
}

func TestWorkerDeliversToAllEndpoints(t *testing.T) {
	registry := newStubRegistry()
	registry.registrations["alice"] = []domain.PushRegistration{
		{Endpoint: "https://push.example.com/send/aaa", P256dh: "k1", Auth: "a1"},
		{Endpoint: "https://push.example.com/send/bbb", P256dh: "k2", Auth: "a2"},
	}
	transport := newStubTransport()
	signer := &stubSigner{}

	q := NewQueue()
	w := NewWorker(q, registry, signer, transport, discardLogger(), WithPollInterval(10*time.Millisecond))

	n := domain.NewPendingNotification("alice", domain.ClassAlert)
	n.EventID = "evt-1"
	n.Title = "Person detected"
	n.Message = "A person was detected on Front Door."
	n.TTL = 3600
	q.Enqueue(n)

	runOne(t, w, q)

	sent := transport.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	for _, msg := range sent {
		if msg.ttl != 3600 {
			t.Errorf("ttl = %d, want 3600", msg.ttl)
		}
		if msg.headers["urgency"] != "high" {
			t.Errorf("urgency header = %q, want high", msg.headers["urgency"])
		}
		if msg.headers["authorization"] == "" {
			t.Error("authorization header missing")
		}

		var payload map[string]any
		if err := json.Unmarshal(msg.payload, &payload); err != nil {
			t.Fatalf("payload not JSON: %v", err)
		}
		if payload["title"] != "Person detected" {
			t.Errorf("payload title = %v", payload["title"])
		}
		if payload["id"] != "evt-1" {
			t.Errorf("payload id = %v", payload["id"])
		}
		if payload["type"] != "alert" {
			t.Errorf("payload type = %v", payload["type"])
		}
	}
}

func TestWorkerCachesClaimPerAudience(t *testing.T) {
	registry := newStubRegistry()
	registry.registrations["alice"] = []domain.PushRegistration{
		{Endpoint: "https://push.example.com/send/aaa"},
		{Endpoint: "https://push.example.com/send/bbb"},
		{Endpoint: "https://other.example.org/send/ccc"},
	}
	transport := newStubTransport()
	signer := &stubSigner{}

	q := NewQueue()
	w := NewWorker(q, registry, signer, transport, discardLogger(), WithPollInterval(10*time.Millisecond))

	q.Enqueue(domain.NewPendingNotification("alice", domain.ClassTest))
	q.Enqueue(domain.NewPendingNotification("alice", domain.ClassTest))

	runOne(t, w, q)

	// Two audiences across six deliveries: exactly two signatures.
	if got := signer.signCalls(); got != 2 {
		t.Errorf("signer called %d times, want 2", got)
	}
}

func TestWorkerResignsExpiredClaim(t *testing.T) {
	registry := newStubRegistry()
	registry.registrations["alice"] = []domain.PushRegistration{
		{Endpoint: "https://push.example.com/send/aaa"},
	}
	transport := newStubTransport()
	signer := &stubSigner{}

	q := NewQueue()
	w := NewWorker(q, registry, signer, transport, discardLogger(),
		WithPollInterval(10*time.Millisecond), WithClaimLifetime(time.Hour))

	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return current }

	q.Enqueue(domain.NewPendingNotification("alice", domain.ClassTest))
	q.Enqueue(domain.NewPendingNotification("alice", domain.ClassTest))
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.Run(ctx)

	if got := signer.signCalls(); got != 1 {
		t.Fatalf("signer called %d times within lifetime, want 1", got)
	}

	// Advance past the claim lifetime and dispatch again.
	current = current.Add(2 * time.Hour)
	w.dispatch(ctx, domain.NewPendingNotification("alice", domain.ClassTest))

	if got := signer.signCalls(); got != 2 {
		t.Errorf("signer called %d times after expiry, want 2", got)
	}
}

func TestWorkerRevokesExpiredEndpoints(t *testing.T) {
	registry := newStubRegistry()
	registry.registrations["alice"] = []domain.PushRegistration{
		{Endpoint: "https://push.example.com/send/dead", Auth: "a1"},
		{Endpoint: "https://push.example.com/send/live", Auth: "a2"},
		{Endpoint: "https://push.example.com/send/gone", Auth: "a3"},
	}
	transport := newStubTransport()
	transport.statuses["https://push.example.com/send/dead"] = 404
	transport.statuses["https://push.example.com/send/gone"] = 410
	signer := &stubSigner{}

	q := NewQueue()
	w := NewWorker(q, registry, signer, transport, discardLogger(), WithPollInterval(10*time.Millisecond))
	q.Enqueue(domain.NewPendingNotification("alice", domain.ClassAlert))

	runOne(t, w, q)

	replaced, ok := registry.replaced["alice"]
	if !ok {
		t.Fatal("ReplaceRegistrations was not called")
	}
	if len(replaced) != 1 || replaced[0].Endpoint != "https://push.example.com/send/live" {
		t.Errorf("surviving registrations = %v, want only the live endpoint", replaced)
	}
}

func TestWorkerKeepsEndpointOnServerError(t *testing.T) {
	registry := newStubRegistry()
	registry.registrations["alice"] = []domain.PushRegistration{
		{Endpoint: "https://push.example.com/send/flaky"},
	}
	transport := newStubTransport()
	transport.statuses["https://push.example.com/send/flaky"] = 500
	signer := &stubSigner{}

	q := NewQueue()
	w := NewWorker(q, registry, signer, transport, discardLogger(), WithPollInterval(10*time.Millisecond))
	q.Enqueue(domain.NewPendingNotification("alice", domain.ClassAlert))

	runOne(t, w, q)

	if _, ok := registry.replaced["alice"]; ok {
		t.Error("ReplaceRegistrations called for a transient failure")
	}
}
