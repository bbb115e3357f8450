package dispatch

import (
	"testing"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()

	first := domain.NewPendingNotification("alice", domain.ClassAlert)
	second := domain.NewPendingNotification("alice", domain.ClassTrigger)
	if !q.Enqueue(first) || !q.Enqueue(second) {
		t.Fatal("Enqueue() failed on open queue")
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	got, ok := q.Poll(time.Second)
	if !ok || got != first {
		t.Errorf("Poll() = %v, %v; want first item", got, ok)
	}
	got, ok = q.Poll(time.Second)
	if !ok || got != second {
		t.Errorf("Poll() = %v, %v; want second item", got, ok)
	}
}

func TestQueuePollTimeout(t *testing.T) {
	q := NewQueue()

	start := time.Now()
	got, ok := q.Poll(50 * time.Millisecond)
	if got != nil || !ok {
		t.Errorf("Poll() on empty queue = %v, %v; want nil, true", got, ok)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Poll() returned after %v, expected to wait near the timeout", elapsed)
	}
}

func TestQueuePollWakesOnEnqueue(t *testing.T) {
	q := NewQueue()
	n := domain.NewPendingNotification("bob", domain.ClassTest)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(n)
	}()

	got, ok := q.Poll(2 * time.Second)
	if !ok || got != n {
		t.Errorf("Poll() = %v, %v; want enqueued item", got, ok)
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue()
	n := domain.NewPendingNotification("carol", domain.ClassAlert)
	q.Enqueue(n)
	q.Close()

	if q.Enqueue(domain.NewPendingNotification("carol", domain.ClassAlert)) {
		t.Error("Enqueue() succeeded after Close()")
	}

	// Queued items survive Close and remain pollable.
	got, ok := q.Poll(time.Second)
	if !ok || got != n {
		t.Fatalf("Poll() after Close = %v, %v; want queued item", got, ok)
	}

	// Once drained, Poll reports the queue closed.
	if got, ok := q.Poll(time.Second); got != nil || ok {
		t.Errorf("Poll() on drained closed queue = %v, %v; want nil, false", got, ok)
	}
}
