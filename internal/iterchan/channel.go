// Package iterchan provides the async iterable primitives the pipeline is
// built from: a bounded single-producer/single-consumer channel with
// end/throw signalling (W[T]), a fan-in join, a quiet-window debouncer, a
// concurrent-task bound, and a parallel-prefetch iteration wrapper.
//
// The shape follows the teacher's internal/output/async.Async — a
// channel the producer writes into and a goroutine (here, the consumer
// itself) drains — generalized from "one inner Output" to "any T" and
// from "drop or block" to the full end/throw/onRead contract spec.md
// requires.
package iterchan

import (
	"context"
	"fmt"
	"sync"
)

// Writer is the producer side of a bounded channel of T. At most one
// value is ever in flight: Write blocks until the previous value has been
// consumed. One of End or Throw must be called when production is done;
// once either has run, further End and Throw calls are ignored and Write
// returns an error.
type Writer[T any] struct {
	ch      chan T
	errCh   chan error
	onRead  func()
	mu      sync.Mutex
	closed  bool
	it      *Iterable[T]
}

// NewChannel creates a connected Writer/Iterable pair.
func NewChannel[T any]() *Writer[T] {
	w := &Writer[T]{
		ch:    make(chan T),
		errCh: make(chan error, 1),
	}
	w.it = &Iterable[T]{w: w}
	return w
}

// OnRead installs a callback started in its own goroutine every time the
// consumer pulls while the channel has not yet ended or thrown. Used by the
// step runner to drive a secondary processFiles output into this
// channel's consumer without a dedicated goroutine per hop.
func (w *Writer[T]) OnRead(fn func()) {
	w.mu.Lock()
	w.onRead = fn
	w.mu.Unlock()
}

// Write sends v downstream, blocking until the consumer pulls it, ctx is
// cancelled, or the channel has already ended/thrown.
func (w *Writer[T]) Write(ctx context.Context, v T) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errClosed
	}
	w.mu.Unlock()

	select {
	case w.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errClosed is returned by Write once End or Throw has already been
// called.
var errClosed = fmt.Errorf("iterchan: write after end/throw")

// End closes the channel cleanly. A call after End or Throw is a no-op.
func (w *Writer[T]) End() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	close(w.ch)
}

// Throw poisons the channel: the next consumer pull (and nothing after
// it) observes err. Used instead of End; a call after End or Throw is a
// no-op.
func (w *Writer[T]) Throw(err error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.errCh <- err
	close(w.ch)
}

// Iterable returns the consumer view of w.
func (w *Writer[T]) Iterable() *Iterable[T] {
	return w.it
}

// Iterable is the consumer side of a Writer[T].
type Iterable[T any] struct {
	w *Writer[T]
}

// Next pulls the next value. ok is false at end of stream (err is nil) or
// when the stream was poisoned (err is non-nil).
func (it *Iterable[T]) Next(ctx context.Context) (v T, ok bool, err error) {
	it.w.mu.Lock()
	onRead := it.w.onRead
	if it.w.closed {
		onRead = nil
	}
	it.w.mu.Unlock()
	if onRead != nil {
		// Run asynchronously: onRead is allowed to turn around and Write
		// back into this same channel (the step runner's processFiles
		// pump does exactly that), which would deadlock against the
		// pending select below if invoked synchronously.
		go onRead()
	}

	select {
	case v, open := <-it.w.ch:
		if !open {
			select {
			case e := <-it.w.errCh:
				return v, false, e
			default:
				return v, false, nil
			}
		}
		return v, true, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Drain pulls every remaining value from it and discards them, stopping
// at end-of-stream or the first error. Used by the step runner to keep a
// plugin-ignored processFiles input from deadlocking its writer.
func Drain[T any](ctx context.Context, it *Iterable[T]) error {
	for {
		_, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Collect pulls every value from it into a slice. Mainly for tests.
func Collect[T any](ctx context.Context, it *Iterable[T]) ([]T, error) {
	var out []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// FromSlice returns an Iterable that yields each element of vs in order,
// then ends.
func FromSlice[T any](vs []T) *Iterable[T] {
	w := NewChannel[T]()
	go func() {
		ctx := context.Background()
		for _, v := range vs {
			if err := w.Write(ctx, v); err != nil {
				return
			}
		}
		w.End()
	}()
	return w.Iterable()
}
