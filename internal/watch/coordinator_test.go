package watch

import (
	"context"
	"testing"
	"time"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// recordingRunner stands in for *pipeline.Pipeline and records every
// partial run it was asked to drive.
type recordingRunner struct {
	runs [][]model.File
}

func (r *recordingRunner) RunPartial(ctx context.Context, run *model.Run, files []model.File) (*model.Summary, error) {
	r.runs = append(r.runs, files)
	return &model.Summary{Run: *run}, nil
}

func watcherPlugin(name string, events []plugin.WatchEvent) *plugin.Controller {
	p := &plugin.Plugin{
		Name: name,
		Watch: func(ctx context.Context, run *model.Run) (*iterchan.Iterable[plugin.WatchEvent], error) {
			return iterchan.FromSlice(events), nil
		},
	}
	return plugin.NewController(p)
}

func TestCoordinatorDispatchesOneBatchOnlyDeletions(t *testing.T) {
	t0 := time.Now()
	var events []plugin.WatchEvent
	for _, path := range []string{"a.txt", "b.txt", "c.txt"} {
		f, err := model.New(path)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		f.ModifiedAt = t0
		cf, err := model.NewChangedFile(f, model.Deleted)
		if err != nil {
			t.Fatalf("NewChangedFile: %v", err)
		}
		events = append(events, plugin.WatchEvent{File: cf})
	}

	runner := &recordingRunner{}
	coord := NewCoordinator([]*plugin.Controller{watcherPlugin("w", events)}, runner, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var changeCount int
	coord.Hooks.OnChange = func(model.ChangedFile) { changeCount++ }

	err := coord.Run(ctx)
	if err != nil && err != context.DeadlineExceeded {
		t.Fatalf("Run: %v", err)
	}

	if len(runner.runs) != 1 {
		t.Fatalf("expected exactly 1 dispatched batch, got %d", len(runner.runs))
	}
	if len(runner.runs[0]) != 0 {
		t.Fatalf("expected empty input for an all-deletions batch, got %d files", len(runner.runs[0]))
	}
	if changeCount != 3 {
		t.Fatalf("expected 3 change events, got %d", changeCount)
	}
}

func TestCoordinatorNoWatchersIsNoop(t *testing.T) {
	runner := &recordingRunner{}
	coord := NewCoordinator(nil, runner, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := coord.Run(ctx); err != nil {
		t.Fatalf("expected nil error with no watchers, got %v", err)
	}
	if len(runner.runs) != 0 {
		t.Fatalf("expected no dispatches, got %d", len(runner.runs))
	}
}
