package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
)

// Error wraps a failure from inside a plugin invocation with the plugin
// name and the operation that failed, matching the wording spec.md §7
// fixes: "An error occurred in <plugin-name> while <operation>."
type Error struct {
	PluginName string
	Operation  string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("An error occurred in %s while %s: %v", e.PluginName, e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(name, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{PluginName: name, Operation: op, Err: err}
}

// Controller adapts a normalized Plugin into the uniform surface the
// pipeline driver and step runner call into. Every invocation is wrapped
// so an error returned by the plugin surfaces as an Error tagged with
// the plugin's name and the operation; panics are recovered only in the
// event hooks (EmitStart et al.). This follows the teacher's pattern of
// wrapping every connector/engine/output call with
// fmt.Errorf("<component>: %w", err).
type Controller struct {
	plugin *Plugin
}

// NewController wraps an already-normalized Plugin.
func NewController(p *Plugin) *Controller {
	return &Controller{plugin: p}
}

// Name returns the controller's plugin name.
func (c *Controller) Name() string { return c.plugin.Name }

// Filter returns the controller's path filter (never nil).
func (c *Controller) Filter() Filter {
	if c.plugin.Filter == nil {
		return AcceptAll
	}
	return c.plugin.Filter
}

// HasRead, HasProcessFile, HasProcessFiles, HasWatch mirror Plugin's
// capability checks, for the step runner and pipeline driver to branch
// on without reaching into the underlying Plugin.
func (c *Controller) HasRead() bool         { return c.plugin.HasRead() }
func (c *Controller) HasProcessFile() bool  { return c.plugin.HasProcessFile() }
func (c *Controller) HasProcessFiles() bool { return c.plugin.HasProcessFiles() }
func (c *Controller) HasWatch() bool        { return c.plugin.HasWatch() }

// Read invokes the plugin's read capability and tags every yielded file
// with this controller's name as its Source origin.
func (c *Controller) Read(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error) {
	if !c.HasRead() {
		return nil, fmt.Errorf("plugin %s: read not supported", c.Name())
	}
	inner, err := c.plugin.Read(ctx, run)
	if err != nil {
		return nil, wrap(c.Name(), "reading", err)
	}

	out := iterchan.NewChannel[model.File]()
	go func() {
		for {
			f, ok, err := inner.Next(ctx)
			if err != nil {
				out.Throw(wrap(c.Name(), "reading", err))
				return
			}
			if !ok {
				out.End()
				return
			}
			f.Source = c.Name()
			if err := out.Write(ctx, f); err != nil {
				return
			}
		}
	}()
	return out.Iterable(), nil
}

// ProcessFile invokes the plugin's processFile capability for one file,
// writing every file it yields to out.
func (c *Controller) ProcessFile(ctx context.Context, file model.File, run *model.Run, out *iterchan.Writer[model.File]) error {
	if !c.HasProcessFile() {
		return fmt.Errorf("plugin %s: processFile not supported", c.Name())
	}
	if err := c.plugin.ProcessFile(ctx, file, run, out); err != nil {
		return wrap(c.Name(), "processing "+file.Path, err)
	}
	return nil
}

// ProcessFiles invokes the plugin's processFiles capability with the full
// stream of files arriving at this step.
func (c *Controller) ProcessFiles(ctx context.Context, in *iterchan.Iterable[model.File], run *model.Run) (*iterchan.Iterable[model.File], error) {
	if !c.HasProcessFiles() {
		return nil, fmt.Errorf("plugin %s: processFiles not supported", c.Name())
	}
	inner, err := c.plugin.ProcessFiles(ctx, in, run)
	if err != nil {
		return nil, wrap(c.Name(), "processing files", err)
	}

	out := iterchan.NewChannel[model.File]()
	go func() {
		for {
			f, ok, err := inner.Next(ctx)
			if err != nil {
				out.Throw(wrap(c.Name(), "processing files", err))
				return
			}
			if !ok {
				out.End()
				return
			}
			if err := out.Write(ctx, f); err != nil {
				return
			}
		}
	}()
	return out.Iterable(), nil
}

// Watch invokes the plugin's watch capability, tagging yielded files with
// this controller's name, matching Read's source-tagging behavior.
func (c *Controller) Watch(ctx context.Context, run *model.Run) (*iterchan.Iterable[WatchEvent], error) {
	if !c.HasWatch() {
		return nil, fmt.Errorf("plugin %s: watch not supported", c.Name())
	}
	inner, err := c.plugin.Watch(ctx, run)
	if err != nil {
		return nil, wrap(c.Name(), "watching", err)
	}

	out := iterchan.NewChannel[WatchEvent]()
	go func() {
		for {
			ev, ok, err := inner.Next(ctx)
			if err != nil {
				out.Throw(wrap(c.Name(), "watching", err))
				return
			}
			if !ok {
				out.End()
				return
			}
			ev.File.Source = c.Name()
			if err := out.Write(ctx, ev); err != nil {
				return
			}
		}
	}()
	return out.Iterable(), nil
}

// Clean and Dispose are idempotent terminal operations; a nil capability
// is a silent no-op rather than an error, since most plugins implement
// neither.
func (c *Controller) Clean(ctx context.Context) error {
	if c.plugin.Clean == nil {
		return nil
	}
	return wrap(c.Name(), "cleaning", c.plugin.Clean(ctx))
}

func (c *Controller) Dispose(ctx context.Context) error {
	if c.plugin.Dispose == nil {
		return nil
	}
	return wrap(c.Name(), "disposing", c.plugin.Dispose(ctx))
}

// EmitStart, EmitFinish, EmitChange, EmitError and EmitLog are fire-and-
// forget event hook invocations; a nil hook is a no-op. Errors are
// wrapped and returned, not swallowed — the facade decides whether one
// listener's error should stop other listeners from being dispatched
// (spec.md §7: it should not).
func (c *Controller) EmitStart(ctx context.Context, run model.Run) error {
	if c.plugin.OnStart == nil {
		return nil
	}
	return wrap(c.Name(), "onStart", safeCall(func() error { return c.plugin.OnStart(ctx, run) }))
}

func (c *Controller) EmitFinish(ctx context.Context, summary model.Summary) error {
	if c.plugin.OnFinish == nil {
		return nil
	}
	return wrap(c.Name(), "onFinish", safeCall(func() error { return c.plugin.OnFinish(ctx, summary) }))
}

func (c *Controller) EmitChange(ctx context.Context, file model.ChangedFile) error {
	if c.plugin.OnChange == nil {
		return nil
	}
	return wrap(c.Name(), "onChange", safeCall(func() error { return c.plugin.OnChange(ctx, file) }))
}

func (c *Controller) EmitError(ctx context.Context, cause error) error {
	if c.plugin.OnError == nil {
		return nil
	}
	return wrap(c.Name(), "onError", safeCall(func() error { return c.plugin.OnError(ctx, cause) }))
}

func (c *Controller) EmitLog(ctx context.Context, event any) error {
	if c.plugin.OnLog == nil {
		return nil
	}
	return wrap(c.Name(), "onLog", safeCall(func() error { return c.plugin.OnLog(ctx, event) }))
}

// EmitAcrossAll calls fn for every controller in ctrls, joining every
// returned error rather than stopping at the first one — per spec.md
// §7, one listener's error must not keep the rest from being
// dispatched.
func EmitAcrossAll(ctrls []*Controller, fn func(*Controller) error) error {
	var errs []error
	for _, c := range ctrls {
		if err := fn(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// safeCall recovers a panicking hook and turns it into an error, so a
// synchronous panic inside a plugin's event hook is re-raised the same
// way an async error would be, per spec.md §4.2's "both synchronous and
// asynchronous errors re-raised" requirement.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
