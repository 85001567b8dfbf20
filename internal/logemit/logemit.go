// Package logemit maps info/debug/warning/error calls to structured
// Event values for the facade's log listeners, the way
// internal/logging did for slog handlers in the teacher repo — except
// here the primary output is the Event itself, and slog is the
// secondary, debug-gated sink.
package logemit

import (
	"log/slog"
	"os"
	"time"
)

// Level is a log severity, one of the four the facade emits.
type Level int

const (
	Info Level = iota
	Debug
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the structured record delivered to facade "log" listeners.
type Event struct {
	Level   Level
	Message string
	Err     error
	Fields  map[string]any
	Time    time.Time
}

// Emitter turns level-tagged calls into Events, forwarding each to a
// sink callback and, when debug is enabled, to the package's slog
// default logger.
type Emitter struct {
	debug bool
	sink  func(Event)
}

// New creates an Emitter. sink is called synchronously for every event;
// pass nil to discard (useful in tests). When debug is true, every event
// is additionally logged via slog at a level matching its severity.
func New(debug bool, sink func(Event)) *Emitter {
	if sink == nil {
		sink = func(Event) {}
	}
	return &Emitter{debug: debug, sink: sink}
}

func (e *Emitter) emit(level Level, msg string, err error, fields map[string]any) {
	ev := Event{Level: level, Message: msg, Err: err, Fields: fields, Time: time.Now()}
	e.sink(ev)
	if !e.debug {
		return
	}
	args := make([]any, 0, len(fields)*2+2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err != nil {
		args = append(args, "error", err)
	}
	switch level {
	case Debug:
		slog.Debug(msg, args...)
	case Warning:
		slog.Warn(msg, args...)
	case Error:
		slog.Error(msg, args...)
	default:
		slog.Info(msg, args...)
	}
}

func (e *Emitter) Info(msg string, fields map[string]any)  { e.emit(Info, msg, nil, fields) }
func (e *Emitter) Debug(msg string, fields map[string]any) { e.emit(Debug, msg, nil, fields) }
func (e *Emitter) Warning(msg string, fields map[string]any) {
	e.emit(Warning, msg, nil, fields)
}
func (e *Emitter) Error(msg string, err error, fields map[string]any) {
	e.emit(Error, msg, err, fields)
}

// Init installs handler as the default slog logger, matching the
// teacher's internal/logging.Init — kept for cmd/forge to configure
// process-wide slog output independently of any one Emitter.
func Init(level slog.Level, json bool) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel converts a string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
