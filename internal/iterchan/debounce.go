package iterchan

import (
	"context"
	"time"
)

// Debounce buffers values from in and emits the buffered batch as a
// single slice whenever in has been quiet for delta. If in ends with a
// non-empty pending batch, that batch is emitted once more before the
// debounced stream ends. Mirrors the teacher's internal/pipeline
// streamBuffer (timer started on first buffered item, reset on flush),
// generalized from "flush on timer OR buffer-full" to "flush on timer
// only, reset per item" per spec.md's debounce window semantics.
func Debounce[T any](ctx context.Context, in *Iterable[T], delta time.Duration) *Iterable[[]T] {
	out := NewChannel[[]T]()

	go func() {
		var pending []T
		var timer *time.Timer
		var timerC <-chan time.Time

		resetTimer := func() {
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delta)
			timerC = timer.C
		}

		values := make(chan item[T])
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				v, ok, err := in.Next(ctx)
				if err != nil {
					select {
					case values <- item[T]{err: err}:
					case <-ctx.Done():
					}
					return
				}
				if !ok {
					return
				}
				select {
				case values <- item[T]{v: v}:
				case <-ctx.Done():
					return
				}
			}
		}()

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			batch := pending
			pending = nil
			if err := out.Write(ctx, batch); err != nil {
				return false
			}
			return true
		}

		for {
			select {
			case v := <-values:
				if v.err != nil {
					out.Throw(v.err)
					return
				}
				pending = append(pending, v.v)
				resetTimer()
			case <-timerC:
				if !flush() {
					return
				}
				timerC = nil
			case <-done:
				if !flush() {
					return
				}
				out.End()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out.Iterable()
}
