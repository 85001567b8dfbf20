package worker

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps a module identifier to the factory that constructs its
// Executor, the in-process analogue of the teacher's module lookup by
// name — a plugin module is "loaded" by asking the registry for a
// fresh Executor rather than exec'ing a binary. Backed by xsync.MapOf
// so concurrent workers can register and resolve modules without a
// shared mutex.
type Registry struct {
	factories *xsync.MapOf[string, ModuleFactory]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: xsync.NewMapOf[ModuleFactory]()}
}

// Register associates moduleID with factory, replacing any existing
// registration for that id.
func (r *Registry) Register(moduleID string, factory ModuleFactory) {
	r.factories.Store(moduleID, factory)
}

// New constructs a fresh Executor for moduleID.
func (r *Registry) New(moduleID string) (Executor, error) {
	factory, ok := r.factories.Load(moduleID)
	if !ok {
		return nil, fmt.Errorf("worker: module %q is not registered", moduleID)
	}
	return factory(), nil
}
