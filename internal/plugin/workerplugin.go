package plugin

import (
	"context"
	"fmt"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/worker"
)

// ModuleRef is the Go realization of spec.md §6's worker-module
// reference capability shape: a capability implemented by a plugin
// module loaded into a worker pool rather than by a function literal
// running in this process's pipeline goroutine. Data is forwarded
// verbatim to the module on every invocation, matching the spec's
// optional `data` field.
type ModuleRef struct {
	ModuleID string
	Data     any
}

// NewWorkerPlugin builds a Plugin whose named capabilities dispatch
// through pool's execPlugin wire event instead of running in-process.
// moduleID must already be registered with pool's Registry and loaded
// via Pool.LoadModule before any of the returned Plugin's capabilities
// are invoked. Supported capability names: "read", "processFile",
// "watch".
func NewWorkerPlugin(name string, pool *worker.Pool, ref ModuleRef, capabilities ...string) *Plugin {
	p := &Plugin{Name: nonEmpty(name), Filter: AcceptAll}
	for _, c := range capabilities {
		switch c {
		case "read":
			p.Read = workerRead(pool, ref)
		case "processFile":
			p.ProcessFile = workerProcessFile(pool, ref)
		case "watch":
			p.Watch = workerWatch(pool, ref)
		}
	}
	return p
}

func workerProcessFile(pool *worker.Pool, ref ModuleRef) func(context.Context, model.File, *model.Run, *Writer[model.File]) error {
	return func(ctx context.Context, file model.File, run *model.Run, out *Writer[model.File]) error {
		result, err := pool.Dispatch(ctx, ref.ModuleID, worker.EventExecPlugin, worker.Invocation{
			Capability: "processFile",
			File:       file,
			Run:        *run,
			Data:       ref.Data,
		})
		if err != nil {
			return err
		}
		return writeFiles(ctx, out, result)
	}
}

func workerRead(pool *worker.Pool, ref ModuleRef) func(context.Context, *model.Run) (*iterchan.Iterable[model.File], error) {
	return func(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error) {
		result, err := pool.Dispatch(ctx, ref.ModuleID, worker.EventExecPlugin, worker.Invocation{
			Capability: "read",
			Run:        *run,
			Data:       ref.Data,
		})
		if err != nil {
			return nil, err
		}
		files, ok := result.([]model.File)
		if !ok {
			return nil, fmt.Errorf("plugin: worker module %s: read returned %T, want []model.File", ref.ModuleID, result)
		}
		return iterchan.FromSlice(files), nil
	}
}

func workerWatch(pool *worker.Pool, ref ModuleRef) func(context.Context, *model.Run) (*iterchan.Iterable[WatchEvent], error) {
	return func(ctx context.Context, run *model.Run) (*iterchan.Iterable[WatchEvent], error) {
		result, err := pool.Dispatch(ctx, ref.ModuleID, worker.EventExecPlugin, worker.Invocation{
			Capability: "watch",
			Run:        *run,
			Data:       ref.Data,
		})
		if err != nil {
			return nil, err
		}
		events, ok := result.([]WatchEvent)
		if !ok {
			return nil, fmt.Errorf("plugin: worker module %s: watch returned %T, want []plugin.WatchEvent", ref.ModuleID, result)
		}
		return iterchan.FromSlice(events), nil
	}
}

// writeFiles accepts either a lone model.File or a []model.File back
// from a module's processFile invocation — the zero/one/many shape
// spec.md §4.2 allows for processFile — and writes each to out.
func writeFiles(ctx context.Context, out *Writer[model.File], result any) error {
	switch v := result.(type) {
	case nil:
		return nil
	case model.File:
		return out.Write(ctx, v)
	case []model.File:
		for _, f := range v {
			if err := out.Write(ctx, f); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("plugin: worker module returned unexpected type %T, want model.File or []model.File", result)
	}
}
