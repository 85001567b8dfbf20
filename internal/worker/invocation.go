package worker

import "github.com/crimson-sun/forge/internal/model"

// Invocation is the execPlugin payload dispatched to a worker-module
// plugin: which capability to run, plus its arguments. Capability is
// one of "read", "processFile", "watch" — the concrete realization of
// spec.md §6's per-capability worker-module reference ({moduleId,
// data?}), since a loaded module may back more than one capability and
// the pool has to say which one it is calling.
type Invocation struct {
	Capability string
	File       model.File
	Run        model.Run
	Data       any
}

// LogMessage is the payload an Executor passes to SubCall for an
// EventLog sub-request, the worker-side half of spec.md §4.6's "log"
// event.
type LogMessage struct {
	Level   string
	Message string
}
