package forge

import (
	"context"
	"testing"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
	"github.com/crimson-sun/forge/internal/worker"
)

func sourcePlugin(paths ...string) *plugin.Plugin {
	return &plugin.Plugin{
		Filter: plugin.AcceptAll,
		Read: func(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error) {
			var files []model.File
			for _, p := range paths {
				f, err := model.New(p)
				if err != nil {
					return nil, err
				}
				files = append(files, f)
			}
			return iterchan.FromSlice(files), nil
		},
	}
}

func TestEngineBuildRunsRegisteredPlugins(t *testing.T) {
	eng := New(WithConcurrency(2))
	defer eng.Dispose(context.Background())

	if err := eng.Use(sourcePlugin("a.txt", "b.txt"), "src"); err != nil {
		t.Fatalf("Use: %v", err)
	}

	var finished model.Summary
	eng.OnFinish(func(s model.Summary) { finished = s })

	summary, err := eng.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if summary.Input.FileCount != 2 {
		t.Fatalf("expected 2 files, got %d", summary.Input.FileCount)
	}
	if finished.Input.FileCount != 2 {
		t.Fatalf("expected OnFinish to receive the summary, got %+v", finished)
	}
}

func TestEngineOperationsFailAfterDispose(t *testing.T) {
	eng := New()
	if err := eng.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	if err := eng.Use(sourcePlugin("a.txt"), "src"); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed from Use, got %v", err)
	}
	if _, err := eng.Build(context.Background()); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed from Build, got %v", err)
	}
	if err := eng.Dispose(context.Background()); err != nil {
		t.Fatalf("second Dispose should be a no-op, got %v", err)
	}
}

// uppercaseExecutor is a worker module that uppercases a file's
// contents, exercising UseWorkerModule's execPlugin dispatch path end
// to end.
type uppercaseExecutor struct{}

func (uppercaseExecutor) Exec(ctx context.Context, event worker.Event, data any, sub worker.SubCall) (any, error) {
	inv, ok := data.(worker.Invocation)
	if !ok || inv.Capability != "processFile" {
		return nil, nil
	}
	f := inv.File
	upper := make([]byte, len(f.Contents))
	for i, b := range f.Contents {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		upper[i] = b
	}
	f.Contents = upper
	return f, nil
}

func TestEngineUseWorkerModuleDispatchesThroughPool(t *testing.T) {
	eng := New(WithConcurrency(2))
	defer eng.Dispose(context.Background())

	if err := eng.Use(sourcePlugin("a.txt"), "src"); err != nil {
		t.Fatalf("Use: %v", err)
	}

	if err := eng.UseWorkerModule("uppercase", func() worker.Executor { return uppercaseExecutor{} }, "upper", nil, "processFile"); err != nil {
		t.Fatalf("UseWorkerModule: %v", err)
	}

	summary, err := eng.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if summary.Input.FileCount != 1 {
		t.Fatalf("expected 1 input file, got %d", summary.Input.FileCount)
	}
	if summary.Output.FileCount != 1 {
		t.Fatalf("expected 1 output file, got %d", summary.Output.FileCount)
	}
}

func TestEngineUseWorkerModuleFailsAfterDispose(t *testing.T) {
	eng := New()
	if err := eng.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	if err := eng.UseWorkerModule("uppercase", func() worker.Executor { return uppercaseExecutor{} }, "upper", nil, "processFile"); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
}

func TestDisposeAllDisposesEveryLiveEngine(t *testing.T) {
	e1 := New()
	e2 := New()

	if err := DisposeAll(context.Background()); err != nil {
		t.Fatalf("DisposeAll: %v", err)
	}

	if _, err := e1.Build(context.Background()); err != ErrDisposed {
		t.Fatalf("expected e1 ErrDisposed, got %v", err)
	}
	if _, err := e2.Build(context.Background()); err != ErrDisposed {
		t.Fatalf("expected e2 ErrDisposed, got %v", err)
	}
}
