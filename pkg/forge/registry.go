package forge

import (
	"context"
	"errors"
	"sync"
)

// instances tracks every live Engine, the way
// internal/connector.registry tracks constructors by name — here keyed
// by identity rather than a provider string, since an Engine has no
// natural name of its own.
var (
	instancesMu sync.Mutex
	instances   = map[*Engine]struct{}{}
)

func register(e *Engine) {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	instances[e] = struct{}{}
}

func unregister(e *Engine) {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	delete(instances, e)
}

// DisposeAll disposes every live Engine, for a process-wide shutdown
// terminal. Errors from individual engines are joined rather than
// stopping the sweep early.
func DisposeAll(ctx context.Context) error {
	instancesMu.Lock()
	live := make([]*Engine, 0, len(instances))
	for e := range instances {
		live = append(live, e)
	}
	instancesMu.Unlock()

	var errs []error
	for _, e := range live {
		if err := e.Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
