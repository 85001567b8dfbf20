package forge

import (
	"os"
	"runtime"
	"time"
)

type options struct {
	cwd         string
	concurrency int
	dev         bool
	debug       bool
	watchDelay  time.Duration
}

// Option configures an Engine.
type Option func(*options)

// WithCwd sets the working directory source plugins resolve relative
// paths against. Default: the process working directory.
func WithCwd(cwd string) Option {
	return func(o *options) { o.cwd = cwd }
}

// WithConcurrency sets the per-run concurrency bound. Default: the
// number of logical CPUs.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithDev overrides the dev flag a Run carries.
func WithDev(dev bool) Option {
	return func(o *options) { o.dev = dev }
}

// WithDebug overrides the debug flag a Run carries, and whether the
// engine's log emitter also writes to slog.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// WithWatchDelay sets the debounce window the watch coordinator waits
// for quiet before dispatching a batch. Default: 300ms.
func WithWatchDelay(d time.Duration) Option {
	return func(o *options) { o.watchDelay = d }
}

// defaultOptions mirrors the teacher's config.Load: environment first,
// sensible fallback second.
func defaultOptions() options {
	cwd, _ := os.Getwd()
	return options{
		cwd:         cwd,
		concurrency: runtime.NumCPU(),
		dev:         os.Getenv("FORGE_DEV") != "",
		debug:       os.Getenv("FORGE_DEBUG") != "",
		watchDelay:  300 * time.Millisecond,
	}
}
