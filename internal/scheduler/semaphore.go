// Package scheduler holds the process-level coordination primitives: the
// page slot semaphore and the data directory lock.
package scheduler

import "context"

// Semaphore bounds how many holders run at once.
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore creates a semaphore with n slots. n below one means one.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{ch: make(chan struct{}, max(n, 1))}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Semaphore) Release() {
	<-s.ch
}

// InUse returns the number of held slots.
func (s *Semaphore) InUse() int { return len(s.ch) }

// Cap returns the total number of slots.
func (s *Semaphore) Cap() int { return cap(s.ch) }
