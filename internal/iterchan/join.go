package iterchan

import (
	"context"
	"sync"
)

// item carries either a value pulled from a source or the error that
// source returned.
type item[T any] struct {
	v   T
	err error
}

// Join merges N iterables in first-available order: whichever source's
// pending Next resolves first is yielded next. Ordering across sources is
// not preserved; within one source it is, since each source is drained by
// its own dedicated goroutine that never starts a second Next until the
// first is consumed. Join terminates when every source has ended, or
// immediately propagates the first error encountered.
func Join[T any](ctx context.Context, sources ...*Iterable[T]) *Iterable[T] {
	out := NewChannel[T]()

	if len(sources) == 0 {
		out.End()
		return out.Iterable()
	}

	merged := make(chan item[T])
	var wg sync.WaitGroup
	wg.Add(len(sources))

	for _, src := range sources {
		src := src
		go func() {
			defer wg.Done()
			for {
				v, ok, err := src.Next(ctx)
				if err != nil {
					select {
					case merged <- item[T]{err: err}:
					case <-ctx.Done():
					}
					return
				}
				if !ok {
					return
				}
				select {
				case merged <- item[T]{v: v}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		for {
			select {
			case it := <-merged:
				if it.err != nil {
					out.Throw(it.err)
					return
				}
				if err := out.Write(ctx, it.v); err != nil {
					return
				}
			case <-done:
				// Drain anything already queued in merged before ending.
				for {
					select {
					case it := <-merged:
						if it.err != nil {
							out.Throw(it.err)
							return
						}
						if err := out.Write(ctx, it.v); err != nil {
							return
						}
						continue
					default:
					}
					break
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
