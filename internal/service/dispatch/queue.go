package dispatch

import (
	"sync"
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// Queue is an unbounded FIFO between the event handlers and the single
// dispatch worker. Enqueue never blocks the producer; the worker drains with
// a bounded poll so shutdown checks run even when the queue is idle.
type Queue struct {
	mu     sync.Mutex
	items  []*domain.PendingNotification
	notify chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends a notification and wakes the worker. It reports false
// once the queue has been closed.
func (q *Queue) Enqueue(n *domain.PendingNotification) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, n)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Poll returns the next notification, waiting up to timeout for one to
// arrive. ok is false only when the queue is closed and fully drained;
// a nil notification with ok true means the timeout elapsed.
func (q *Queue) Poll(timeout time.Duration) (*domain.PendingNotification, bool) {
	if n, closed := q.pop(); n != nil || closed {
		return n, !closed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if n, closed := q.pop(); n != nil || closed {
				return n, !closed
			}
		case <-timer.C:
			if n, closed := q.pop(); n != nil || closed {
				return n, !closed
			}
			return nil, true
		}
	}
}

// pop returns the head item, or reports that the queue is closed and empty.
func (q *Queue) pop() (*domain.PendingNotification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		n := q.items[0]
		q.items = q.items[1:]
		return n, false
	}
	return nil, q.closed
}

// Close stops accepting new notifications. Items already queued remain
// pollable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
