package iterchan

import "context"

// IterateParallel wraps it so that up to k-1 additional items are
// prefetched from the underlying source while the consumer is still
// processing the previous one. k <= 1 is a pass-through.
func IterateParallel[T any](ctx context.Context, it *Iterable[T], k int) *Iterable[T] {
	if k <= 1 {
		return it
	}

	out := NewChannel[T]()
	go func() {
		sem := make(chan struct{}, k-1)
		results := make(chan item[T], k)
		var pending int

		pull := func() bool {
			sem <- struct{}{}
			pending++
			go func() {
				v, ok, err := it.Next(ctx)
				<-sem
				if err != nil {
					results <- item[T]{err: err}
					return
				}
				if !ok {
					results <- item[T]{err: errEnd}
					return
				}
				results <- item[T]{v: v}
			}()
			return true
		}

		// Keep sem full of in-flight pulls.
		for len(sem) < cap(sem) {
			pull()
		}

		for pending > 0 {
			r := <-results
			pending--
			if r.err == errEnd {
				continue
			}
			if r.err != nil {
				out.Throw(r.err)
				return
			}
			if err := out.Write(ctx, r.v); err != nil {
				return
			}
			if len(sem) < cap(sem) {
				pull()
			}
		}
		out.End()
	}()
	return out.Iterable()
}

// errEnd is a sentinel used internally to distinguish "source ended" from
// a real error without adding an ok bool to the item type.
var errEnd = endOfStream{}

type endOfStream struct{}

func (endOfStream) Error() string { return "iterchan: end of stream" }
