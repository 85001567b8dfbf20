// Package step implements the pipeline step runner: for one plugin
// controller, route each input file either straight to the output
// (filter miss) or into processFile and/or the step's processFiles
// stream, bounded by the run's concurrency.
//
// The dual-path dispatch loop generalizes the teacher's
// internal/pipeline.Pipeline.streamWithDedup, which also juggled a
// primary channel (raw logs), a side channel (the flush timer), and a
// single output — here the "side channel" is a step's own processFiles
// input, and both paths can be live for the same file at once.
package step

import (
	"context"
	"fmt"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// Run executes one processor step: ctrl is the step's plugin controller,
// in is the stream of files arriving at this step, out is where this
// step's results are written, and run carries the run's concurrency
// bound. Run blocks until in is exhausted and every dispatched task has
// settled, then ends out — or poisons out and returns the first error.
func Run(ctx context.Context, ctrl *plugin.Controller, in *iterchan.Iterable[model.File], out *iterchan.Writer[model.File], run *model.Run) error {
	bound := iterchan.NewBound(max(run.Concurrency, 1))

	var sub *iterchan.Writer[model.File]
	var subOutput *iterchan.Iterable[model.File]

	if ctrl.HasProcessFiles() {
		sub = iterchan.NewChannel[model.File]()
		subOut, err := ctrl.ProcessFiles(ctx, sub.Iterable(), run)
		if err != nil {
			out.Throw(err)
			return err
		}
		subOutput = subOut

		// Pipe subOutput into out every time out's own consumer pulls,
		// so a step with only processFiles (no processFile) still
		// streams results without a dedicated pump goroutine per file.
		out.OnRead(func() {
			v, ok, err := subOutput.Next(ctx)
			if err != nil {
				out.Throw(err)
				return
			}
			if !ok {
				return
			}
			_ = out.Write(ctx, v)
		})
	}

	runErr := dispatchLoop(ctx, ctrl, in, out, sub, run, bound)

	if waitErr := bound.WaitForAll(ctx); waitErr != nil && runErr == nil {
		runErr = waitErr
	}

	if runErr != nil {
		out.Throw(runErr)
		return runErr
	}

	if sub != nil {
		sub.End()
		if err := drainSubOutput(ctx, subOutput, out); err != nil {
			out.Throw(err)
			return err
		}
	}

	out.End()
	return nil
}

// dispatchLoop pulls files from in, routing each through the filter and
// into whichever of processFile/sub exist, under the concurrency bound.
func dispatchLoop(ctx context.Context, ctrl *plugin.Controller, in *iterchan.Iterable[model.File], out *iterchan.Writer[model.File], sub *iterchan.Writer[model.File], run *model.Run, bound *iterchan.Bound) error {
	filter := ctrl.Filter()

	for {
		f, ok, err := in.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := bound.WaitForAvailability(ctx); err != nil {
			return err
		}

		if !filter(f.Path) {
			file := f
			bound.Add(func() error {
				return out.Write(ctx, file)
			})
			continue
		}

		if ctrl.HasProcessFile() {
			file := f
			bound.Add(func() error {
				return ctrl.ProcessFile(ctx, file, run, out)
			})
		}
		if sub != nil {
			if ctrl.HasProcessFile() {
				// The processFile task above took this file's slot; the
				// second task needs a slot of its own.
				if err := bound.WaitForAvailability(ctx); err != nil {
					return err
				}
			}
			file := f
			bound.Add(func() error {
				return sub.Write(ctx, file)
			})
		}
		if !ctrl.HasProcessFile() && sub == nil {
			// Filter-matching file, but the step implements neither
			// capability: forward it, matching a filter miss.
			file := f
			bound.Add(func() error {
				return out.Write(ctx, file)
			})
		}
	}
}

// drainSubOutput pulls every remaining value out of a step's
// processFiles output after its input has ended, forwarding each to out.
// Needed because out.OnRead only fires while something is actively
// pulling from out; once in is exhausted, the driver must actively drive
// the tail of subOutput to completion itself.
func drainSubOutput(ctx context.Context, subOutput *iterchan.Iterable[model.File], out *iterchan.Writer[model.File]) error {
	for {
		v, ok, err := subOutput.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := out.Write(ctx, v); err != nil {
			return fmt.Errorf("step: writing processFiles tail: %w", err)
		}
	}
}
