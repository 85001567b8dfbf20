package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type echoExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *echoExecutor) Exec(ctx context.Context, event Event, data any, sub SubCall) (any, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if event == EventExecPlugin && data == "boom" {
		return nil, fmt.Errorf("exec failed")
	}
	return data, nil
}

func TestPoolLoadAndDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", func() Executor { return &echoExecutor{} })

	pool := NewPool(3, reg)
	if err := pool.LoadModule("echo"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}

	for i := 0; i < 6; i++ {
		result, err := pool.Dispatch(context.Background(), "echo", EventExecPlugin, i)
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if result != i {
			t.Fatalf("expected echoed %d, got %v", i, result)
		}
	}
}

func TestPoolLoadModuleMissingFails(t *testing.T) {
	reg := NewRegistry()
	pool := NewPool(2, reg)

	if err := pool.LoadModule("nope"); err == nil {
		t.Fatal("expected error loading an unregistered module")
	}
}

func TestPoolDispatchPropagatesExecutorError(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", func() Executor { return &echoExecutor{} })

	pool := NewPool(1, reg)
	if err := pool.LoadModule("echo"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}

	if _, err := pool.Dispatch(context.Background(), "echo", EventExecPlugin, "boom"); err == nil {
		t.Fatal("expected executor error to propagate")
	}
}

func TestPoolDisposeRejectsFurtherCalls(t *testing.T) {
	reg := NewRegistry()
	reg.Register("echo", func() Executor { return &echoExecutor{} })

	pool := NewPool(1, reg)
	_ = pool.LoadModule("echo")
	if err := pool.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := pool.Dispose(); err != nil {
		t.Fatalf("second Dispose should be a no-op, got %v", err)
	}

	if _, err := pool.Dispatch(context.Background(), "echo", EventExecPlugin, 1); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
	if err := pool.LoadModule("echo"); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
}

type loggingExecutor struct{}

func (loggingExecutor) Exec(ctx context.Context, event Event, data any, sub SubCall) (any, error) {
	if _, err := sub(ctx, EventLog, LogMessage{Level: "info", Message: "executing"}); err != nil {
		return nil, err
	}
	return data, nil
}

func TestPoolSubRequestRoutesToRegisteredHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Register("logger", func() Executor { return loggingExecutor{} })

	pool := NewPool(1, reg)
	var got LogMessage
	pool.Handle(EventLog, func(ctx context.Context, data any) (any, error) {
		got = data.(LogMessage)
		return nil, nil
	})

	if err := pool.LoadModule("logger"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, err := pool.Dispatch(context.Background(), "logger", EventExecPlugin, "hi"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.Message != "executing" {
		t.Fatalf("expected the sub-request's log message to reach the registered handler, got %+v", got)
	}
}

func TestPoolSubRequestWithNoHandlerErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register("logger", func() Executor { return loggingExecutor{} })

	pool := NewPool(1, reg)
	if err := pool.LoadModule("logger"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, err := pool.Dispatch(context.Background(), "logger", EventExecPlugin, "hi"); err == nil {
		t.Fatal("expected dispatch to fail: no handler registered for EventLog")
	}
}

func TestPoolRoundRobinDistributesAcrossContexts(t *testing.T) {
	reg := NewRegistry()
	execs := make([]*echoExecutor, 0, 3)
	var mu sync.Mutex
	reg.Register("counter", func() Executor {
		e := &echoExecutor{}
		mu.Lock()
		execs = append(execs, e)
		mu.Unlock()
		return e
	})

	pool := NewPool(3, reg)
	if err := pool.LoadModule("counter"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	for i := 0; i < 9; i++ {
		if _, err := pool.Dispatch(context.Background(), "counter", EventExecPlugin, i); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	for i, e := range execs {
		e.mu.Lock()
		calls := e.calls
		e.mu.Unlock()
		if calls != 3 {
			t.Fatalf("context %d: expected 3 calls from round robin, got %d", i, calls)
		}
	}
}
