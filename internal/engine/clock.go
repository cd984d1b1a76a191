package engine

import "sync/atomic"

// Clock numbers cycles with a strictly increasing sequence.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The reentrancy guard means only one goroutine typically calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to resume numbering
// from the last journaled cycle.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
