// Package pipeline assembles a run's plugin controllers into a single
// stream: every controller with a read capability is fanned in as a
// source, then every controller with processFile or processFiles runs
// in registration order as a processing step, each wired to the next
// by internal/step.Run, with
// the final stream drained under the run's concurrency bound to
// produce a model.Summary.
//
// The fan-in-then-chain shape follows the teacher's
// internal/pipeline.Pipeline, which also wired exactly one connector's
// stream through exactly one engine into exactly one output — here
// generalized from "one of each" to "any number of source and
// processor plugins", the way godruoyi-easegress's pkg/model.Pipeline
// chains an ordered list of filters between a source and a sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
	"github.com/crimson-sun/forge/internal/step"
)

// Pipeline holds the plugin controllers for one engine instance, in the
// order they were registered.
type Pipeline struct {
	controllers []*plugin.Controller
}

// New creates an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Add appends a controller, in registration order.
func (p *Pipeline) Add(c *plugin.Controller) {
	p.controllers = append(p.controllers, c)
}

// Controllers returns the registered controllers, in registration order.
func (p *Pipeline) Controllers() []*plugin.Controller {
	return p.controllers
}

// Run drives one full pass: it reads from every source controller,
// fans their output together, runs each processing controller as a
// step over that stream in turn, and drains the final result, counting
// bytes and files at both ends. Run blocks until the stream is
// exhausted or the first error occurs.
func (p *Pipeline) Run(ctx context.Context, run *model.Run) (*model.Summary, error) {
	sources := p.sourceControllers()
	if len(sources) == 0 {
		// Zero source plugins is not an error: a full run with only
		// processor plugins yields an empty stream, producing a summary
		// with input and output counts both zero.
		return p.runFrom(ctx, run, iterchan.FromSlice[model.File](nil))
	}

	var reads []*iterchan.Iterable[model.File]
	for _, src := range sources {
		it, err := src.Read(ctx, run)
		if err != nil {
			return nil, err
		}
		reads = append(reads, it)
	}

	return p.runFrom(ctx, run, iterchan.Join(ctx, reads...))
}

// RunPartial drives a watch-mode dispatch: files is fed directly into
// the step chain, bypassing every source controller's read — the
// watch coordinator has already supplied the deduped changed files
// that should flow through this run.
func (p *Pipeline) RunPartial(ctx context.Context, run *model.Run, files []model.File) (*model.Summary, error) {
	return p.runFrom(ctx, run, iterchan.FromSlice(files))
}

// runFrom threads stream through every processing step and drains the
// result, tagging input/output metrics at each end.
func (p *Pipeline) runFrom(ctx context.Context, run *model.Run, stream *iterchan.Iterable[model.File]) (*model.Summary, error) {
	start := nowFunc()

	var input model.Metrics
	stream = observe(ctx, stream, &input)

	for _, s := range p.stepControllers() {
		next := iterchan.NewChannel[model.File]()
		in := stream
		go runAndSettle(ctx, s, in, next, run)
		stream = next.Iterable()
	}

	var output model.Metrics
	stream = observe(ctx, stream, &output)

	// The drain has no downstream step of its own to bound its
	// concurrency, so a chain ending in a trailing processor (rather
	// than a dedicated destination plugin) would otherwise pull it
	// sequentially; route it through IterateParallel so the run's
	// concurrency still applies here.
	stream = iterchan.IterateParallel(ctx, stream, run.Concurrency)

	if err := drain(ctx, stream); err != nil {
		return nil, err
	}

	end := nowFunc()
	return &model.Summary{
		Run:    *run,
		Input:  input,
		Output: output,
		Time: model.TimeRange{
			Start:   start,
			End:     end,
			Elapsed: end.Sub(start),
		},
	}, nil
}

// runAndSettle runs one step to completion. step.Run already ends or
// poisons out itself on every return path, so there is nothing left
// for the caller to do with the returned error; it exists purely so
// panics inside step.Run surface as a poisoned stream instead of
// silently killing this goroutine.
func runAndSettle(ctx context.Context, ctrl *plugin.Controller, in *iterchan.Iterable[model.File], out *iterchan.Writer[model.File], run *model.Run) {
	defer func() {
		if r := recover(); r != nil {
			out.Throw(fmt.Errorf("pipeline: step %s panicked: %v", ctrl.Name(), r))
		}
	}()
	_ = step.Run(ctx, ctrl, in, out, run)
}

// sourceControllers returns every controller that implements read, in
// registration order.
func (p *Pipeline) sourceControllers() []*plugin.Controller {
	var out []*plugin.Controller
	for _, c := range p.controllers {
		if c.HasRead() {
			out = append(out, c)
		}
	}
	return out
}

// stepControllers returns every controller that processes files, in
// registration order — a controller that only reads never appears as
// a step, but one that both reads and processes does (it is both a
// source and a step).
func (p *Pipeline) stepControllers() []*plugin.Controller {
	var out []*plugin.Controller
	for _, c := range p.controllers {
		if c.HasProcessFile() || c.HasProcessFiles() {
			out = append(out, c)
		}
	}
	return out
}

// observe wraps it so every value pulled through it is folded into m
// before being forwarded, without buffering or reordering the stream.
// Mirrors the teacher's atomic event counters on Pipeline, generalized
// from two fixed counters to one Metrics per tap point.
func observe(ctx context.Context, it *iterchan.Iterable[model.File], m *model.Metrics) *iterchan.Iterable[model.File] {
	out := iterchan.NewChannel[model.File]()
	go func() {
		for {
			f, ok, err := it.Next(ctx)
			if err != nil {
				out.Throw(err)
				return
			}
			if !ok {
				out.End()
				return
			}
			m.Add(f.Size())
			if err := out.Write(ctx, f); err != nil {
				return
			}
		}
	}()
	return out.Iterable()
}

// drain pulls every remaining value out of it, so a destination plugin
// already wired as the last step still has something driving its
// output to completion; each step upstream has already done its own
// concurrency-bounded work, so drain itself is a plain sequential pull
// that surfaces the first error the chain produced.
func drain(ctx context.Context, it *iterchan.Iterable[model.File]) error {
	for {
		_, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// nowFunc is a var so tests can stub a fixed clock.
var nowFunc = func() time.Time { return time.Now() }
