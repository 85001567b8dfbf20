package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// execContext is one isolated execution context: it hosts a map of
// loaded Executors keyed by module id (spec.md's "map of module-id ->
// loaded handle" per worker context) and tracks its own outstanding
// requests, matching valksor-go-mehrhof's per-process pending map and
// atomic request counter.
type execContext struct {
	id int

	mu      sync.Mutex
	modules map[string]Executor
	pending map[int64]chan *Response
	settled map[int64]struct{}
	reqID   atomic.Int64
}

func newExecContext(id int) *execContext {
	return &execContext{
		id:      id,
		modules: make(map[string]Executor),
		pending: make(map[int64]chan *Response),
		settled: make(map[int64]struct{}),
	}
}

// load constructs an Executor for moduleID from the registry and adds
// it to this context's module table, alongside whatever else is
// already loaded. A module load is not itself request/response — it
// either installs the Executor or fails outright.
func (c *execContext) load(registry *Registry, moduleID string) error {
	ex, err := registry.New(moduleID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.modules[moduleID] = ex
	c.mu.Unlock()
	return nil
}

// call issues event/data as a Request against moduleID's loaded
// Executor in this context and blocks for the Response, a pending
// Request entered into c.pending so a late or duplicate resolve is
// ignored rather than delivered twice. pool is threaded through so the
// Executor's SubCall can route sub-requests to the pool's registered
// handlers, tagged with this Request's id as OriginalRequestID.
func (c *execContext) call(ctx context.Context, pool *Pool, moduleID string, event Event, data any) (any, error) {
	c.mu.Lock()
	ex := c.modules[moduleID]
	c.mu.Unlock()
	if ex == nil {
		return nil, fmt.Errorf("worker: execution context %d has no loaded module %q", c.id, moduleID)
	}

	id := c.reqID.Add(1)
	ch := make(chan *Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	sub := SubCall(func(subCtx context.Context, subEvent Event, subData any) (any, error) {
		return pool.dispatchSub(subCtx, id, subEvent, subData)
	})

	go func() {
		result, err := ex.Exec(ctx, event, data, sub)
		c.resolve(id, &Response{RequestID: id, Result: result, Err: err})
	}()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("worker: execution context %d terminated before responding", c.id)
		}
		return resp.Result, resp.Err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// resolve delivers resp to the pending request matching its id, unless
// that id has already settled — the "completed set" that makes a late
// duplicate response a no-op rather than a second delivery.
func (c *execContext) resolve(id int64, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.settled[id]; done {
		return
	}
	ch, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	c.settled[id] = struct{}{}
	ch <- resp
	close(ch)
}

// terminate rejects every request still outstanding on this context.
func (c *execContext) terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}
