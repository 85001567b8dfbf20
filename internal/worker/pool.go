package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrDisposed is returned by LoadModule and Dispatch once Dispose has
// run, matching the facade's fixed "operation after disposal" error kind.
var ErrDisposed = errors.New("worker: pool disposed")

// Pool is a fixed-size set of execution contexts. Size equals the
// run's concurrency, per spec.md §4.6. Module loads are broadcast to
// every context and must all succeed; per-file dispatch round-robins
// across contexts, generalizing PremModhaOfficial-nms's
// PluginWorkerPool (fixed worker count, one job channel) from a queued
// job channel to direct round-robin dispatch, since backpressure here
// is the caller step runner's concurrency bound, not the pool's own
// queue.
type Pool struct {
	contexts []*execContext
	registry *Registry

	next  atomic.Uint64
	subID atomic.Int64

	mu       sync.RWMutex
	disposed bool
	handlers map[Event]func(ctx context.Context, data any) (any, error)
}

// NewPool creates a Pool of size execution contexts (minimum 1) backed
// by registry.
func NewPool(size int, registry *Registry) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{registry: registry}
	for i := 0; i < size; i++ {
		p.contexts = append(p.contexts, newExecContext(i))
	}
	return p
}

// LoadModule broadcasts a module load to every execution context in
// the pool. It returns a joined error if any context failed to load —
// per spec.md, all contexts must succeed for the load to complete.
func (p *Pool) LoadModule(moduleID string) error {
	if p.isDisposed() {
		return ErrDisposed
	}

	var wg sync.WaitGroup
	errs := make([]error, len(p.contexts))
	for i, c := range p.contexts {
		wg.Add(1)
		go func(i int, c *execContext) {
			defer wg.Done()
			errs[i] = c.load(p.registry, moduleID)
		}(i, c)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Dispatch selects the next execution context in round-robin order
// and issues event/data against moduleID's loaded handle there,
// blocking for the result. moduleID must already have been loaded via
// LoadModule.
func (p *Pool) Dispatch(ctx context.Context, moduleID string, event Event, data any) (any, error) {
	if p.isDisposed() {
		return nil, ErrDisposed
	}
	idx := p.next.Add(1) - 1
	c := p.contexts[int(idx)%len(p.contexts)]
	return c.call(ctx, p, moduleID, event, data)
}

// Handle registers handler as the top-level handler for sub-requests
// carrying event, replacing any previously registered handler for
// that event. Used by the facade to wire EventLog sub-requests from
// worker modules into its own log emitter.
func (p *Pool) Handle(event Event, handler func(ctx context.Context, data any) (any, error)) {
	p.mu.Lock()
	if p.handlers == nil {
		p.handlers = make(map[Event]func(ctx context.Context, data any) (any, error))
	}
	p.handlers[event] = handler
	p.mu.Unlock()
}

// subRequestContextKey is the context key dispatchSub stashes its
// SubRequest under, so a handler that cares about correlation (for
// example the facade's log sink tagging a trace line with the request
// it came from) can recover it with SubRequestFromContext.
type subRequestContextKey struct{}

// SubRequestFromContext returns the SubRequest dispatchSub attached to
// ctx, if any.
func SubRequestFromContext(ctx context.Context) (SubRequest, bool) {
	req, ok := ctx.Value(subRequestContextKey{}).(SubRequest)
	return req, ok
}

// dispatchSub routes a SubRequest (originating from originalRequestID)
// to the handler registered for event, matching spec.md §4.6: "a
// sub-request is dispatched to its originating request's handler map;
// otherwise to the top-level handler table." This pool has no
// per-request handler maps, so every sub-request resolves against the
// top-level table; the SubRequest itself still travels with the call,
// in ctx, so a handler can recover its id and originating request.
func (p *Pool) dispatchSub(ctx context.Context, originalRequestID int64, event Event, data any) (any, error) {
	req := SubRequest{ID: p.subID.Add(1), OriginalRequestID: originalRequestID, Event: event, Data: data}

	p.mu.RLock()
	handler := p.handlers[event]
	p.mu.RUnlock()
	if handler == nil {
		return nil, fmt.Errorf("worker: no handler registered for sub-request event %q", event)
	}
	return handler(context.WithValue(ctx, subRequestContextKey{}, req), data)
}

// Dispose terminates every execution context, rejecting any requests
// still in flight. Safe to call more than once.
func (p *Pool) Dispose() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	p.mu.Unlock()

	for _, c := range p.contexts {
		c.terminate()
	}
	return nil
}

func (p *Pool) isDisposed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disposed
}
