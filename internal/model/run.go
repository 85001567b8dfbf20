package model

import "github.com/google/uuid"

// Logger is the logging capability carried on a Run. It is satisfied by
// internal/logemit.Emitter; defined here (rather than imported) so that
// model has no dependency on the log emitter package.
type Logger interface {
	Info(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Warning(msg string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}

// Run describes one pass through the pipeline.
type Run struct {
	ID uuid.UUID

	Cwd         string
	Concurrency int

	// Full and Partial are mutually exclusive; Full is true for a build()
	// call, false for a watch-mode dispatch of a ChangedFile batch.
	Full bool

	// ChangedFiles is non-empty only for a partial (watch-mode) run.
	ChangedFiles []ChangedFile

	Dev   bool
	Debug bool

	Log Logger
}

// Partial reports whether this run is a watch-mode partial run.
func (r Run) Partial() bool {
	return !r.Full
}

// Clone returns a shallow copy of r with its own copy of the ChangedFiles
// slice, so that a listener receiving this Run from an event cannot
// change which files the running Run carries. The copied ChangedFile
// values still share their Metadata maps and Contents buffers.
func (r Run) Clone() Run {
	if r.ChangedFiles != nil {
		cf := make([]ChangedFile, len(r.ChangedFiles))
		copy(cf, r.ChangedFiles)
		r.ChangedFiles = cf
	}
	return r
}

// NewRun constructs a full Run with a fresh ID.
func NewRun(cwd string, concurrency int, dev, debug bool, log Logger) Run {
	return Run{
		ID:          uuid.New(),
		Cwd:         cwd,
		Concurrency: concurrency,
		Full:        true,
		Dev:         dev,
		Debug:       debug,
		Log:         log,
	}
}

// NewPartialRun constructs a partial (watch-mode) Run carrying the given
// deduped changed files.
func NewPartialRun(cwd string, concurrency int, dev, debug bool, log Logger, changed []ChangedFile) Run {
	return Run{
		ID:           uuid.New(),
		Cwd:          cwd,
		Concurrency:  concurrency,
		Full:         false,
		ChangedFiles: changed,
		Dev:          dev,
		Debug:        debug,
		Log:          log,
	}
}
