package dispatch

import (
	"sort"
	"sync"

	"github.com/roach88/awareness/internal/world"
)

// Outbox is a subscriber's FIFO notification stream.
//
// The queue is unbounded; the consumer (a messaging layer) drains it at
// its own pace. A channel with a buffer of one signals availability so
// consumers can wait with select alongside their own context.
//
// Thread-safety: all methods are safe for concurrent use.
type Outbox struct {
	subscriberID string

	mu     sync.Mutex
	items  []world.Notification
	closed bool
	signal chan struct{}
}

func newOutbox(subscriberID string) *Outbox {
	return &Outbox{
		subscriberID: subscriberID,
		items:        make([]world.Notification, 0, 16),
		signal:       make(chan struct{}, 1),
	}
}

// SubscriberID returns the owner of the outbox.
func (o *Outbox) SubscriberID() string { return o.subscriberID }

// Enqueue appends n. Returns false if the outbox is closed.
func (o *Outbox) Enqueue(n world.Notification) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.items = append(o.items, n)

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the oldest notification without blocking.
func (o *Outbox) TryDequeue() (world.Notification, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.items) == 0 {
		return world.Notification{}, false
	}
	n := o.items[0]
	// Clear the slot so the payload slice can be collected.
	o.items[0] = world.Notification{}
	if len(o.items) == 1 {
		o.items = o.items[:0]
	} else {
		o.items = o.items[1:]
	}
	return n, true
}

// Drain removes and returns every queued notification, oldest first.
func (o *Outbox) Drain() []world.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.items
	o.items = make([]world.Notification, 0, 16)
	return out
}

// Wait returns a channel signalled when notifications may be available.
// It is closed when the outbox closes.
func (o *Outbox) Wait() <-chan struct{} {
	return o.signal
}

// Len returns the number of queued notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Close stops further deliveries and wakes waiters.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.signal)
}

// Closed reports whether Close was called.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Hub owns the outboxes of all registered subscribers.
type Hub struct {
	mu    sync.RWMutex
	boxes map[string]*Outbox
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{boxes: make(map[string]*Outbox)}
}

// Open returns the open outbox for id, creating one if needed. A closed
// outbox is replaced, so a re-registered subscriber starts empty.
func (h *Hub) Open(id string) *Outbox {
	h.mu.Lock()
	defer h.mu.Unlock()

	if box, ok := h.boxes[id]; ok && !box.Closed() {
		return box
	}
	box := newOutbox(id)
	h.boxes[id] = box
	return box
}

// Get returns the outbox for id.
func (h *Hub) Get(id string) (*Outbox, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	box, ok := h.boxes[id]
	return box, ok
}

// Close closes and forgets the outbox for id. Returns false if there was
// none.
func (h *Hub) Close(id string) bool {
	h.mu.Lock()
	box, ok := h.boxes[id]
	delete(h.boxes, id)
	h.mu.Unlock()

	if ok {
		box.Close()
	}
	return ok
}

// CloseAll closes every outbox.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	boxes := h.boxes
	h.boxes = make(map[string]*Outbox)
	h.mu.Unlock()

	for _, box := range boxes {
		box.Close()
	}
}

// IDs returns the subscribers with an outbox, sorted.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.boxes))
	for id := range h.boxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
