package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// sourcePlugin yields a fixed set of files and nothing else.
func sourcePlugin(name string, paths ...string) *plugin.Controller {
	p := &plugin.Plugin{
		Name:   name,
		Filter: plugin.AcceptAll,
		Read: func(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error) {
			var files []model.File
			for _, path := range paths {
				f, err := model.NewWithContents(path, []byte(path))
				if err != nil {
					return nil, err
				}
				files = append(files, f)
			}
			return iterchan.FromSlice(files), nil
		},
	}
	return plugin.NewController(p)
}

// uppercasePlugin rewrites each file's contents to upper case.
func uppercasePlugin(name string) *plugin.Controller {
	p := &plugin.Plugin{
		Name:   name,
		Filter: plugin.AcceptAll,
		ProcessFile: func(ctx context.Context, f model.File, run *model.Run, out *plugin.Writer[model.File]) error {
			upper := make([]byte, len(f.Contents))
			for i, b := range f.Contents {
				if b >= 'a' && b <= 'z' {
					b -= 'a' - 'A'
				}
				upper[i] = b
			}
			f.Contents = upper
			return out.Write(ctx, f)
		},
	}
	return plugin.NewController(p)
}

func TestPipelineRunSingleSourceSingleStep(t *testing.T) {
	pl := New()
	pl.Add(sourcePlugin("src", "a.txt", "b.txt"))
	pl.Add(uppercasePlugin("upper"))

	run := model.NewRun(".", 2, false, false, nil)
	summary, err := pl.Run(context.Background(), &run)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Input.FileCount != 2 {
		t.Fatalf("expected 2 input files, got %d", summary.Input.FileCount)
	}
	if summary.Output.FileCount != 2 {
		t.Fatalf("expected 2 output files, got %d", summary.Output.FileCount)
	}
}

func TestPipelineRunFansInMultipleSources(t *testing.T) {
	pl := New()
	pl.Add(sourcePlugin("src1", "a.txt"))
	pl.Add(sourcePlugin("src2", "b.txt", "c.txt"))

	run := model.NewRun(".", 2, false, false, nil)
	summary, err := pl.Run(context.Background(), &run)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Input.FileCount != 3 {
		t.Fatalf("expected 3 fanned-in files, got %d", summary.Input.FileCount)
	}
}

func TestPipelineRunNoSourceYieldsEmptySummary(t *testing.T) {
	pl := New()
	pl.Add(uppercasePlugin("upper"))

	run := model.NewRun(".", 1, false, false, nil)
	summary, err := pl.Run(context.Background(), &run)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Input.FileCount != 0 || summary.Input.FileSize != 0 {
		t.Fatalf("expected empty input metrics, got %+v", summary.Input)
	}
	if summary.Output.FileCount != 0 || summary.Output.FileSize != 0 {
		t.Fatalf("expected empty output metrics, got %+v", summary.Output)
	}
}

func TestPipelineRunPropagatesStepError(t *testing.T) {
	failing := &plugin.Plugin{
		Name:   "failing",
		Filter: plugin.AcceptAll,
		ProcessFile: func(ctx context.Context, f model.File, run *model.Run, out *plugin.Writer[model.File]) error {
			return fmt.Errorf("boom")
		},
	}

	pl := New()
	pl.Add(sourcePlugin("src", "a.txt"))
	pl.Add(plugin.NewController(failing))

	run := model.NewRun(".", 1, false, false, nil)
	if _, err := pl.Run(context.Background(), &run); err == nil {
		t.Fatal("expected step error to propagate")
	}
}
