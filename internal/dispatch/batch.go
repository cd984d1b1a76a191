package dispatch

import (
	"sort"
	"sync"

	"github.com/roach88/awareness/internal/world"
)

// Batch stages one cycle's notifications until the cycle commits.
//
// Thread-safety: Stage may be called from concurrent fan-out workers.
// Per-subscriber order is the order of Stage calls for that subscriber.
type Batch struct {
	mu     sync.Mutex
	staged map[string][]world.Notification
	count  int
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{staged: make(map[string][]world.Notification)}
}

// Stage adds n to the batch.
func (b *Batch) Stage(n world.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged[n.SubscriberID] = append(b.staged[n.SubscriberID], n)
	b.count++
}

// Len returns the number of staged notifications.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Delivery is the outcome of a commit.
type Delivery struct {
	// Delivered in subscriber id order, then stage order.
	Delivered []world.Notification
	Dropped   int
	// DroppedSubscribers lists subscribers that lost notifications.
	DroppedSubscribers []string
}

// Commit delivers staged notifications, subscribers in id order. A
// subscriber for which active reports false, or whose outbox is missing
// or closed, receives nothing from this batch. The batch is emptied.
func (b *Batch) Commit(hub *Hub, active func(id string) bool) Delivery {
	b.mu.Lock()
	staged := b.staged
	b.staged = make(map[string][]world.Notification)
	b.count = 0
	b.mu.Unlock()

	ids := make([]string, 0, len(staged))
	for id := range staged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var d Delivery
	for _, id := range ids {
		list := staged[id]
		box, ok := hub.Get(id)
		if !ok || !active(id) {
			d.Dropped += len(list)
			d.DroppedSubscribers = append(d.DroppedSubscribers, id)
			continue
		}

		lost := 0
		for i, n := range list {
			if !box.Enqueue(n) {
				lost = len(list) - i
				break
			}
			d.Delivered = append(d.Delivered, n)
		}
		if lost > 0 {
			d.Dropped += lost
			d.DroppedSubscribers = append(d.DroppedSubscribers, id)
		}
	}
	return d
}
