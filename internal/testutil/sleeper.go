package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper captures rate-limit sleeps instead of waiting, so
// throttling behavior can be asserted without wall-clock delays.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// NewRecordingSleeper creates an empty sleeper.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records the requested duration and returns immediately, unless
// the context is already cancelled.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

// Sleeps returns the recorded durations in order.
func (s *RecordingSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration{}, s.sleeps...)
}

// Total returns the sum of all recorded durations.
func (s *RecordingSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.sleeps {
		total += d
	}
	return total
}
