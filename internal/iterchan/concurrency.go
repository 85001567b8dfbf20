package iterchan

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Bound tracks up to k outstanding tasks, matching spec.md's C(k): a
// caller acquires a slot with WaitForAvailability, registers the task
// with Add, and can wait for every registered task to settle with
// WaitForAll. The first task error is latched and surfaced to the next
// WaitForAvailability or WaitForAll call, the way a semaphore-guarded
// worker pool surfaces its first failure without needing a separate
// error channel.
type Bound struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	firstErr error
}

// NewBound creates a Bound admitting at most k concurrent tasks.
func NewBound(k int) *Bound {
	if k < 1 {
		k = 1
	}
	return &Bound{sem: semaphore.NewWeighted(int64(k))}
}

// WaitForAvailability blocks until fewer than k tasks are outstanding, or
// returns the first latched task error, or ctx is cancelled.
func (b *Bound) WaitForAvailability(ctx context.Context) error {
	if err := b.takeErr(); err != nil {
		return err
	}
	return b.sem.Acquire(ctx, 1)
}

// Add runs task in a new goroutine, releasing the slot acquired by the
// most recent WaitForAvailability when it settles. The first non-nil
// error returned by any task is latched for WaitForAvailability/WaitForAll
// to surface.
func (b *Bound) Add(task func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.sem.Release(1)
		if err := task(); err != nil {
			b.mu.Lock()
			if b.firstErr == nil {
				b.firstErr = err
			}
			b.mu.Unlock()
		}
	}()
}

// WaitForAll blocks until every added task has settled, then returns the
// first latched error, if any.
func (b *Bound) WaitForAll(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return b.takeErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bound) takeErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firstErr
}
