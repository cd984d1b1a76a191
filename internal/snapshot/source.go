package snapshot

import (
	"context"
	"sync"

	"github.com/roach88/awareness/internal/world"
)

// Source supplies the next snapshot produced by the external simulation.
// Next returns (nil, nil) when nothing new is available.
type Source interface {
	Next(ctx context.Context) (*world.Snapshot, error)
}

// SliceSource replays a fixed sequence of snapshots, one per call.
//
// Thread-safety: SliceSource is safe for concurrent use via internal mutex.
type SliceSource struct {
	mu        sync.Mutex
	snapshots []*world.Snapshot
	idx       int
}

// NewSliceSource creates a source yielding snapshots in order.
func NewSliceSource(snapshots ...*world.Snapshot) *SliceSource {
	return &SliceSource{snapshots: snapshots}
}

// NewDirSource loads a directory with LoadDir and replays it in version order.
func NewDirSource(dir string) (*SliceSource, error) {
	snaps, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewSliceSource(snaps...), nil
}

// Next returns the next snapshot, or nil once exhausted.
func (s *SliceSource) Next(ctx context.Context) (*world.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.snapshots) {
		return nil, nil
	}
	snap := s.snapshots[s.idx]
	s.idx++
	return snap, nil
}

// Remaining returns how many snapshots have not been yielded yet.
func (s *SliceSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots) - s.idx
}
