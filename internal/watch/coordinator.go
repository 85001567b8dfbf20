package watch

import (
	"context"
	"time"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// Runner is the subset of *pipeline.Pipeline the coordinator drives a
// partial run through — narrowed to ease testing with a stand-in.
type Runner interface {
	RunPartial(ctx context.Context, run *model.Run, files []model.File) (*model.Summary, error)
}

// Hooks are the facade event listeners the coordinator fires during
// its loop. Every field is optional; a nil hook is a no-op.
type Hooks struct {
	OnChange func(model.ChangedFile)
	OnStart  func(model.Run)
	OnFinish func(model.Summary)
	OnError  func(error)
}

// Coordinator runs the long-lived watch loop: join every watch-capable
// controller's stream, debounce it, dedupe each batch to one
// ChangedFile per path, and dispatch a partial run through pipe for
// every resulting batch.
type Coordinator struct {
	controllers []*plugin.Controller
	pipe        Runner

	Cwd         string
	Concurrency int
	Dev         bool
	Debug       bool
	Log         model.Logger

	Delta time.Duration

	Hooks Hooks
}

// NewCoordinator builds a Coordinator over every watch-capable
// controller found in all. Controllers without a watch capability are
// ignored here — they still participate in the step chain via pipe.
func NewCoordinator(all []*plugin.Controller, pipe Runner, delta time.Duration) *Coordinator {
	c := &Coordinator{pipe: pipe, Delta: delta, Concurrency: 1}
	for _, ctrl := range all {
		if ctrl.HasWatch() {
			c.controllers = append(c.controllers, ctrl)
		}
	}
	return c
}

// Run starts every watcher and loops dispatching a partial run per
// debounced, deduped batch until ctx is cancelled, every watch stream
// has ended, or an error occurs. A watcher error or an error returned
// by a dispatched partial run fires OnError and ends the loop; a
// partial-run error is also returned from Run.
func (c *Coordinator) Run(ctx context.Context) error {
	if len(c.controllers) == 0 {
		return nil
	}

	watchRun := model.NewRun(c.Cwd, c.Concurrency, c.Dev, c.Debug, c.Log)

	var streams []*iterchan.Iterable[plugin.WatchEvent]
	for _, ctrl := range c.controllers {
		it, err := ctrl.Watch(ctx, &watchRun)
		if err != nil {
			return err
		}
		streams = append(streams, it)
	}

	broadcast := make(chan plugin.WatchEvent)
	joined := iterchan.Join(ctx, streams...)
	go func() {
		defer close(broadcast)
		for {
			ev, ok, err := joined.Next(ctx)
			if err != nil {
				c.fireError(err)
				return
			}
			if !ok {
				return
			}
			c.fireChange(ev.File)
			select {
			case broadcast <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	feed := iterchan.NewChannel[plugin.WatchEvent]()
	go func() {
		for ev := range broadcast {
			if err := feed.Write(ctx, ev); err != nil {
				return
			}
		}
		feed.End()
	}()

	batches := iterchan.Debounce(ctx, feed.Iterable(), c.Delta)

	for {
		batch, ok, err := batches.Next(ctx)
		if err != nil {
			c.fireError(err)
			return err
		}
		if !ok {
			return nil
		}
		if err := c.dispatch(ctx, batch); err != nil {
			c.fireError(err)
			return err
		}
	}
}

// dispatch dedupes one debounced batch and drives a partial run
// through pipe, filtering out Deleted files before they enter the
// pipeline's input per spec.md §4.5 step 4.
func (c *Coordinator) dispatch(ctx context.Context, batch []plugin.WatchEvent) error {
	changed := DeduplicateBatch(batch)

	var input []model.File
	for _, cf := range changed {
		if cf.Change != model.Deleted {
			input = append(input, cf.File)
		}
	}

	run := model.NewPartialRun(c.Cwd, c.Concurrency, c.Dev, c.Debug, c.Log, changed)
	c.fireStart(run)

	summary, err := c.pipe.RunPartial(ctx, &run, input)
	if err != nil {
		return err
	}
	c.fireFinish(*summary)
	return nil
}

func (c *Coordinator) fireChange(cf model.ChangedFile) {
	if c.Hooks.OnChange != nil {
		c.Hooks.OnChange(cf)
	}
}

func (c *Coordinator) fireStart(run model.Run) {
	if c.Hooks.OnStart != nil {
		c.Hooks.OnStart(run.Clone())
	}
}

func (c *Coordinator) fireFinish(summary model.Summary) {
	if c.Hooks.OnFinish != nil {
		c.Hooks.OnFinish(summary)
	}
}

func (c *Coordinator) fireError(err error) {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return
	}
	if c.Hooks.OnError != nil {
		c.Hooks.OnError(err)
	}
}
