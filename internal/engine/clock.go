package engine

import "sync/atomic"

// Clock is a monotonic logical clock stamping queue slots.
//
// Every freshly created member intent is stamped with the next sequence
// number. The stamp records the order of first intent creation, which
// is the FIFO dispatch order the worker guarantees across distinct
// members, and ties log lines from enqueue to dispatch.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Event handlers stamp from many goroutines; the worker only reads.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
