package worker

import "context"

// SubCall lets an Executor issue a sub-request back to the pool while
// it is still servicing an original request (spec.md §4.6's
// SubRequest). The pool routes the call to whatever handler is
// registered for event via Pool.Handle; there is no separate handler
// table per originating request in this in-process pool, but the
// originating request's id still tags the call for correlation in
// debug logs.
type SubCall func(ctx context.Context, event Event, data any) (any, error)

// Executor hosts one loaded plugin module inside a worker's execution
// context and services the events the pool dispatches to it. sub lets
// the executor call back into the pool mid-exec — e.g. to emit a log
// line through the pool's registered EventLog handler — without
// waiting for its own response to be delivered first.
type Executor interface {
	Exec(ctx context.Context, event Event, data any, sub SubCall) (any, error)
}

// ModuleFactory constructs a fresh Executor for one module id. A
// module is loaded independently into every worker in a pool, so the
// factory is called once per worker, never shared.
type ModuleFactory func() Executor
