package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/awareness/internal/world"
)

// DefaultDepth is the default number of snapshots retained.
const DefaultDepth = 8

var (
	// ErrNilSnapshot is returned when pushing a nil snapshot.
	ErrNilSnapshot = errors.New("snapshot: nil snapshot")

	// ErrStaleVersion is returned when a pushed version does not exceed
	// the latest stored version.
	ErrStaleVersion = errors.New("snapshot: version does not increase")
)

// Store is a concurrency-safe ring buffer of snapshots.
//
// Thread-safety: Push takes the write lock; all reads take the read lock
// and return snapshots that are never mutated afterwards.
type Store struct {
	mu    sync.RWMutex
	ring  []*world.Snapshot
	head  int // index of the next write
	count int
}

// NewStore creates a store retaining up to depth snapshots.
// Depth below 2 is raised to 2: detection needs a previous snapshot.
func NewStore(depth int) *Store {
	if depth < 2 {
		depth = 2
	}
	return &Store{ring: make([]*world.Snapshot, depth)}
}

// Push stores a deep copy of s as the current snapshot.
func (st *Store) Push(s *world.Snapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}
	cp := s.Clone()

	st.mu.Lock()
	defer st.mu.Unlock()

	if latest := st.latestLocked(); latest != nil && cp.Version <= latest.Version {
		return fmt.Errorf("%w: got %d, latest %d", ErrStaleVersion, cp.Version, latest.Version)
	}

	st.ring[st.head] = cp
	st.head = (st.head + 1) % len(st.ring)
	if st.count < len(st.ring) {
		st.count++
	}
	return nil
}

// Latest returns the current snapshot, or nil when empty.
func (st *Store) Latest() *world.Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.latestLocked()
}

// Pair returns the previous and current snapshots under one lock.
// previous is nil when fewer than two snapshots are stored.
func (st *Store) Pair() (previous, current *world.Snapshot) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.atLocked(1), st.atLocked(0)
}

// Get returns the stored snapshot with the given version.
func (st *Store) Get(version int64) (*world.Snapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for i := 0; i < st.count; i++ {
		if s := st.atLocked(i); s.Version == version {
			return s, true
		}
	}
	return nil, false
}

// History returns the stored snapshots, oldest first.
func (st *Store) History() []*world.Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*world.Snapshot, 0, st.count)
	for i := st.count - 1; i >= 0; i-- {
		out = append(out, st.atLocked(i))
	}
	return out
}

// Depth returns how many snapshots are currently stored.
func (st *Store) Depth() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.count
}

// Capacity returns the maximum number of snapshots retained.
func (st *Store) Capacity() int {
	return len(st.ring)
}

func (st *Store) latestLocked() *world.Snapshot {
	return st.atLocked(0)
}

// atLocked returns the snapshot back steps before the latest.
func (st *Store) atLocked(back int) *world.Snapshot {
	if back >= st.count {
		return nil
	}
	n := len(st.ring)
	return st.ring[((st.head-1-back)%n+n)%n]
}
