package job

import "context"

// semaphore limits how many jobs are Running at once
type semaphore struct {
	ch chan struct{}
}

// newSemaphore creates a new semaphore with the given capacity
func newSemaphore(capacity int) *semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &semaphore{
		ch: make(chan struct{}, capacity),
	}
}

// acquire takes a slot, blocking until one frees, ctx ends or abort closes
func (s *semaphore) acquire(ctx context.Context, abort <-chan struct{}) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-abort:
		return errCancelled
	}
}

// release releases a semaphore slot
func (s *semaphore) release() {
	<-s.ch
}
