package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Semaphore caps how many jobs of one category run at once. Ticks use
// TryAcquire and skip a busy category; RunNow waits with Acquire.
type Semaphore struct {
	w    *semaphore.Weighted
	size int64
	held atomic.Int64
}

// NewSemaphore returns a semaphore with n slots; n below 1 means 1.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{w: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// TryAcquire takes a slot if one is free.
func (s *Semaphore) TryAcquire() bool {
	if !s.w.TryAcquire(1) {
		return false
	}
	s.held.Add(1)
	return true
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := s.w.Acquire(ctx, 1); err != nil {
		return err
	}
	s.held.Add(1)
	return nil
}

// Release frees a slot taken by TryAcquire or Acquire.
func (s *Semaphore) Release() {
	s.held.Add(-1)
	s.w.Release(1)
}

// Available reports free slots. It is a snapshot for status output.
func (s *Semaphore) Available() int {
	return int(s.size - s.held.Load())
}
