package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/crimson-sun/forge/internal/logemit"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/pipeline"
	"github.com/crimson-sun/forge/internal/plugin"
	"github.com/crimson-sun/forge/internal/watch"
	"github.com/crimson-sun/forge/internal/worker"
)

// ErrDisposed is returned by Use, UseWorkerModule, Clean, Build and
// Watch once Dispose has run.
var ErrDisposed = errors.New("forge: engine disposed")

// Hooks are the facade-level event listeners a caller can register
// alongside (not instead of) any plugin's own onStart/onFinish/
// onChange/onError/onLog hooks.
type Hooks struct {
	OnStart  func(model.Run)
	OnFinish func(model.Summary)
	OnChange func(model.ChangedFile)
	OnError  func(error)
	OnLog    func(logemit.Event)
}

// Engine owns one pipeline's plugins, its worker pool, its log
// emitter, and its configuration, matching spec.md §3's ownership
// rule ("the facade owns the pipeline and the worker pool"). Safe for
// concurrent use.
type Engine struct {
	cfg      options
	log      *logemit.Emitter
	registry *worker.Registry
	pool     *worker.Pool

	mu       sync.Mutex
	pipe     *pipeline.Pipeline
	hooks    Hooks
	disposed bool
}

// New constructs an Engine and registers it with the global instance
// registry so DisposeAll can reclaim it. The worker pool is sized to
// the engine's concurrency, per spec.md §4.6.
func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	registry := worker.NewRegistry()
	e := &Engine{
		cfg:      o,
		pipe:     pipeline.New(),
		registry: registry,
		pool:     worker.NewPool(o.concurrency, registry),
	}
	e.log = logemit.New(o.debug, func(ev logemit.Event) {
		e.mu.Lock()
		onLog := e.hooks.OnLog
		controllers := e.pipe.Controllers()
		e.mu.Unlock()
		if onLog != nil {
			onLog(ev)
		}
		// A failing onLog plugin hook is reported straight to slog rather
		// than through fireError, since fireError's own EmitError failure
		// path logs back through this same sink.
		if err := plugin.EmitAcrossAll(controllers, func(c *plugin.Controller) error {
			return c.EmitLog(context.Background(), ev)
		}); err != nil {
			slog.Error("onLog hook failed", "error", err)
		}
	})

	// A worker-module executor's mid-invocation log sub-request (spec.md
	// §4.6's EventLog) lands here and is folded into the same Emitter
	// every in-process plugin hook logs through, so a caller's OnLog
	// listener sees both kinds of log traffic on one channel.
	e.pool.Handle(worker.EventLog, func(ctx context.Context, data any) (any, error) {
		msg, ok := data.(worker.LogMessage)
		if !ok {
			return nil, fmt.Errorf("forge: log sub-request: unexpected payload %T", data)
		}
		var fields map[string]any
		if req, ok := worker.SubRequestFromContext(ctx); ok {
			fields = map[string]any{"requestID": req.OriginalRequestID}
		}
		switch msg.Level {
		case "debug":
			e.log.Debug(msg.Message, fields)
		case "warning", "warn":
			e.log.Warning(msg.Message, fields)
		case "error":
			e.log.Error(msg.Message, nil, fields)
		default:
			e.log.Info(msg.Message, fields)
		}
		return nil, nil
	})

	register(e)
	return e
}

// OnStart, OnFinish, OnChange, OnError and OnLog register this
// engine's facade-level listeners, replacing any previously registered
// listener for that event.
func (e *Engine) OnStart(fn func(model.Run))          { e.setHook(func(h *Hooks) { h.OnStart = fn }) }
func (e *Engine) OnFinish(fn func(model.Summary))      { e.setHook(func(h *Hooks) { h.OnFinish = fn }) }
func (e *Engine) OnChange(fn func(model.ChangedFile))  { e.setHook(func(h *Hooks) { h.OnChange = fn }) }
func (e *Engine) OnError(fn func(error))               { e.setHook(func(h *Hooks) { h.OnError = fn }) }
func (e *Engine) OnLog(fn func(logemit.Event))         { e.setHook(func(h *Hooks) { h.OnLog = fn }) }

func (e *Engine) setHook(set func(*Hooks)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set(&e.hooks)
}

// Use normalizes def into a plugin and appends it to the pipeline, in
// registration order. fallbackName is used if def supplies no name of
// its own.
func (e *Engine) Use(def any, fallbackName string) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	p, err := plugin.Normalize(def, fallbackName)
	if err != nil {
		return fmt.Errorf("forge: use: %w", err)
	}

	e.mu.Lock()
	e.pipe.Add(plugin.NewController(p))
	e.mu.Unlock()
	return nil
}

// UseWorkerModule registers factory under moduleID in this engine's
// worker registry, broadcasts the load to every context in its pool,
// and appends a plugin backed by that module for each capability name
// in capabilities ("read", "processFile", "watch") — the concrete
// path by which a plugin's capability is "a worker-module reference
// {moduleId, data?}" per spec.md §6, rather than an in-process
// callable.
func (e *Engine) UseWorkerModule(moduleID string, factory worker.ModuleFactory, fallbackName string, data any, capabilities ...string) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	e.registry.Register(moduleID, factory)
	if err := e.pool.LoadModule(moduleID); err != nil {
		return fmt.Errorf("forge: useWorkerModule: %w", err)
	}

	p := plugin.NewWorkerPlugin(nonEmptyName(fallbackName), e.pool, plugin.ModuleRef{ModuleID: moduleID, Data: data}, capabilities...)
	e.mu.Lock()
	e.pipe.Add(plugin.NewController(p))
	e.mu.Unlock()
	return nil
}

func nonEmptyName(name string) string {
	if name == "" {
		return "worker-plugin"
	}
	return name
}

// Clean invokes every registered plugin's clean capability.
func (e *Engine) Clean(ctx context.Context) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}
	e.mu.Lock()
	controllers := e.pipe.Controllers()
	e.mu.Unlock()

	for _, c := range controllers {
		if err := c.Clean(ctx); err != nil {
			e.fireError(ctx, err)
			return err
		}
	}
	return nil
}

// Build drives one full run through the pipeline and returns its
// summary.
func (e *Engine) Build(ctx context.Context) (*model.Summary, error) {
	if err := e.checkDisposed(); err != nil {
		return nil, err
	}

	run := model.NewRun(e.cfg.cwd, e.cfg.concurrency, e.cfg.dev, e.cfg.debug, e.log)
	e.fireStart(ctx, run)

	e.mu.Lock()
	pipe := e.pipe
	e.mu.Unlock()

	summary, err := pipe.Run(ctx, &run)
	if err != nil {
		e.fireError(ctx, err)
		return nil, err
	}
	e.fireFinish(ctx, *summary)
	return summary, nil
}

// Watch starts the long-lived watch loop and blocks until ctx is
// cancelled or an error ends the loop. A worker-pool crash (surfaced as an
// error from the loop) triggers an automatic Dispose before Watch
// returns, matching spec.md's facade error-handling policy.
func (e *Engine) Watch(ctx context.Context) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}

	e.mu.Lock()
	pipe := e.pipe
	controllers := pipe.Controllers()
	e.mu.Unlock()

	coord := watch.NewCoordinator(controllers, pipe, e.cfg.watchDelay)
	coord.Cwd = e.cfg.cwd
	coord.Concurrency = e.cfg.concurrency
	coord.Dev = e.cfg.dev
	coord.Debug = e.cfg.debug
	coord.Log = e.log
	coord.Hooks = watch.Hooks{
		OnChange: func(cf model.ChangedFile) { e.fireChange(ctx, cf) },
		OnStart:  func(run model.Run) { e.fireStart(ctx, run) },
		OnFinish: func(summary model.Summary) { e.fireFinish(ctx, summary) },
		OnError:  func(err error) { e.fireError(ctx, err) },
	}

	err := coord.Run(ctx)
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		_ = e.Dispose(context.Background())
	}
	return err
}

// Dispose invokes every registered plugin's dispose capability,
// removes this engine from the global registry, and causes every
// subsequent Engine method to fail with ErrDisposed. Safe to call more
// than once.
func (e *Engine) Dispose(ctx context.Context) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil
	}
	e.disposed = true
	controllers := e.pipe.Controllers()
	e.mu.Unlock()

	unregister(e)

	var errs []error
	for _, c := range controllers {
		if err := c.Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.pool.Dispose(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) checkDisposed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}
	return nil
}

// fireStart, fireFinish, fireChange and fireError dispatch to both the
// facade-level Hooks listener and every registered plugin's matching
// onStart/onFinish/onChange/onError capability (spec.md §3, §4.2, §6),
// via Controller.EmitStart et al. A plugin hook's error is joined and
// surfaced rather than aborting the rest, per spec.md §7.
func (e *Engine) fireStart(ctx context.Context, run model.Run) {
	e.mu.Lock()
	fn := e.hooks.OnStart
	controllers := e.pipe.Controllers()
	e.mu.Unlock()
	if fn != nil {
		fn(run)
	}
	if err := plugin.EmitAcrossAll(controllers, func(c *plugin.Controller) error {
		return c.EmitStart(ctx, run)
	}); err != nil {
		e.fireError(ctx, err)
	}
}

func (e *Engine) fireFinish(ctx context.Context, summary model.Summary) {
	e.mu.Lock()
	fn := e.hooks.OnFinish
	controllers := e.pipe.Controllers()
	e.mu.Unlock()
	if fn != nil {
		fn(summary)
	}
	if err := plugin.EmitAcrossAll(controllers, func(c *plugin.Controller) error {
		return c.EmitFinish(ctx, summary)
	}); err != nil {
		e.fireError(ctx, err)
	}
}

func (e *Engine) fireChange(ctx context.Context, cf model.ChangedFile) {
	e.mu.Lock()
	fn := e.hooks.OnChange
	controllers := e.pipe.Controllers()
	e.mu.Unlock()
	if fn != nil {
		fn(cf)
	}
	if err := plugin.EmitAcrossAll(controllers, func(c *plugin.Controller) error {
		return c.EmitChange(ctx, cf)
	}); err != nil {
		e.fireError(ctx, err)
	}
}

// fireError dispatches to the facade-level OnError listener and every
// plugin's onError hook. A failing onError hook is logged rather than
// looped back through fireError, to avoid recursing on itself.
func (e *Engine) fireError(ctx context.Context, err error) {
	e.mu.Lock()
	fn := e.hooks.OnError
	controllers := e.pipe.Controllers()
	e.mu.Unlock()
	if fn != nil {
		fn(err)
	}
	if hookErr := plugin.EmitAcrossAll(controllers, func(c *plugin.Controller) error {
		return c.EmitError(ctx, err)
	}); hookErr != nil {
		e.log.Error("onError hook failed", hookErr, nil)
	}
}
