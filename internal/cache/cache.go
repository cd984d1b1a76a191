// Package cache memoises per-subscriber derived views.
//
// Concurrent requests for the same uncached key share one computation
// (golang.org/x/sync/singleflight). Entries record the snapshot version
// they were computed from and the categories they read; Invalidate drops
// an entry only when the version has moved past it AND a change touched
// one of its categories.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/awareness/internal/world"
)

// Computed is what a compute function returns.
type Computed[V any] struct {
	Value      V
	Version    int64
	Categories []world.Category
}

// ComputeFunc derives the value for a key.
type ComputeFunc[V any] func(ctx context.Context) (Computed[V], error)

type entry[V any] struct {
	value      V
	version    int64
	categories map[world.Category]struct{}
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries  int
	Hits     int64
	Misses   int64
	Computes int64
	Evicted  int64
}

// Cache is a keyed, single-flight memo.
//
// Thread Safety: safe for concurrent use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	flight  singleflight.Group

	// generation bumps on ClearAll; epoch bumps on every invalidation.
	// A computation only stores its result if neither moved while it ran.
	generation atomic.Uint64
	epoch      atomic.Uint64

	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
	evicted  atomic.Int64
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]*entry[V])}
}

// Get returns the cached value for key, if present.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrCompute returns the cached value for key, computing it at most once
// across concurrent callers on a miss. Errors are returned to every waiter
// and are not cached.
//
// A caller whose ctx ends while waiting returns ctx.Err(); the shared
// computation keeps running for the others.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	gen := c.generation.Load()
	flightKey := fmt.Sprintf("%d/%s", gen, key)

	ch := c.flight.DoChan(flightKey, func() (any, error) {
		// Another flight may have filled the entry between our miss and now.
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		epoch := c.epoch.Load()
		c.computes.Add(1)
		res, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, res, gen, epoch)
		return res.Value, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			var zero V
			return zero, r.Err
		}
		return r.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) store(key string, res Computed[V], gen, epoch uint64) {
	cats := make(map[world.Category]struct{}, len(res.Categories))
	for _, cat := range res.Categories {
		cats[cat] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen || c.epoch.Load() != epoch {
		return
	}
	c.entries[key] = &entry[V]{value: res.Value, version: res.Version, categories: cats}
}

// Invalidate drops every entry computed before version that reads one of
// the touched categories. Returns the number of entries dropped.
func (c *Cache[V]) Invalidate(version int64, touched []world.Category) int {
	if len(touched) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch.Add(1)

	dropped := 0
	for key, e := range c.entries {
		if e.version >= version {
			continue
		}
		for _, cat := range touched {
			if _, ok := e.categories[cat]; ok {
				delete(c.entries, key)
				dropped++
				break
			}
		}
	}
	c.evicted.Add(int64(dropped))
	return dropped
}

// Delete removes one key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.evicted.Add(1)
	}
	c.epoch.Add(1)
}

// ClearAll drops every entry. Computations already in flight still return
// to their callers but do not repopulate the cache.
func (c *Cache[V]) ClearAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.generation.Add(1)
	c.entries = make(map[string]*entry[V])
	c.evicted.Add(int64(n))
	return n
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:  c.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
		Evicted:  c.evicted.Load(),
	}
}
