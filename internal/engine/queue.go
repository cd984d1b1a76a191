package engine

import (
	"sync"

	"github.com/roach88/awareness/internal/world"
)

// changeQueue holds injected changes until the next cycle drains them.
//
// The queue is unbounded; injection never blocks the caller.
// Enqueue signals a buffered channel (size 1, coalescing) so the
// scheduler loop can start an immediate cycle.
type changeQueue struct {
	mu      sync.Mutex
	changes []world.Change
	closed  bool
	signal  chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends c. Returns false if the queue is closed.
func (q *changeQueue) Enqueue(c world.Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.changes = append(q.changes, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued change in arrival order.
func (q *changeQueue) Drain() []world.Change {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.changes
	q.changes = nil
	return out
}

// Requeue puts changes back at the front, ahead of anything injected
// since they were drained.
func (q *changeQueue) Requeue(changes []world.Change) {
	if len(changes) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.changes = append(append([]world.Change(nil), changes...), q.changes...)
}

// Wait returns a channel that signals when changes may be available.
// The channel is closed by Close.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued changes.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Close rejects further changes and wakes waiters.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
