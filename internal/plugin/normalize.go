package plugin

import (
	"context"
	"fmt"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
)

// The loosest definition a caller may hand to Normalize is any value
// implementing a subset of these narrow, single-method interfaces.
// This is the minimal concrete form of the module-resolution/plugin-
// normalization concern spec.md marks as an external collaborator — Go's
// static typing means there is no JS-style "loose bag of optional
// callables" to coerce, only a set of optional interfaces to probe.
type (
	Named interface{ PluginName() string }

	Filterer interface{ PluginFilter() Filter }

	Reader interface {
		Read(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error)
	}
	FileProcessor interface {
		ProcessFile(ctx context.Context, file model.File, run *model.Run, out *Writer[model.File]) error
	}
	FilesProcessor interface {
		ProcessFiles(ctx context.Context, in *iterchan.Iterable[model.File], run *model.Run) (*iterchan.Iterable[model.File], error)
	}
	Watcher interface {
		Watch(ctx context.Context, run *model.Run) (*iterchan.Iterable[WatchEvent], error)
	}
	Cleaner interface{ Clean(ctx context.Context) error }
	Disposer interface{ Dispose(ctx context.Context) error }

	StartListener  interface{ OnStart(ctx context.Context, run model.Run) error }
	FinishListener interface {
		OnFinish(ctx context.Context, summary model.Summary) error
	}
	ChangeListener interface {
		OnChange(ctx context.Context, file model.ChangedFile) error
	}
	ErrorListener interface{ OnError(ctx context.Context, err error) error }
	LogListener   interface{ OnLog(ctx context.Context, event any) error }
)

// defaultName is used when a definition has no Named implementation and
// no fallback name was supplied.
const defaultName = "plugin"

// Normalize coerces def into a canonical Plugin. Supported shapes:
//
//   - *Plugin or Plugin: copied, with an empty Name or nil Filter
//     filled in with the defaults.
//   - func(ctx, model.File, *model.Run, *Writer[model.File]) error: the
//     processFile shorthand — the only capability spec.md allows as a
//     bare top-level callable.
//   - any value implementing one or more of the capability interfaces
//     above: each implemented interface populates the matching field.
//
// fallbackName is used when def has no PluginName() and is not already a
// named *Plugin.
func Normalize(def any, fallbackName string) (*Plugin, error) {
	switch v := def.(type) {
	case *Plugin:
		cp := *v
		if cp.Name == "" {
			cp.Name = nonEmpty(fallbackName)
		}
		if cp.Filter == nil {
			cp.Filter = AcceptAll
		}
		return &cp, nil
	case Plugin:
		return Normalize(&v, fallbackName)
	case func(context.Context, model.File, *model.Run, *Writer[model.File]) error:
		return &Plugin{Name: nonEmpty(fallbackName), Filter: AcceptAll, ProcessFile: v}, nil
	case nil:
		return nil, fmt.Errorf("plugin: nil plugin definition")
	}

	p := &Plugin{Name: nonEmpty(fallbackName), Filter: AcceptAll}
	matched := false

	if n, ok := def.(Named); ok {
		p.Name = n.PluginName()
	}
	if f, ok := def.(Filterer); ok {
		p.Filter = f.PluginFilter()
	}
	if r, ok := def.(Reader); ok {
		p.Read = r.Read
		matched = true
	}
	if fp, ok := def.(FileProcessor); ok {
		p.ProcessFile = fp.ProcessFile
		matched = true
	}
	if fp, ok := def.(FilesProcessor); ok {
		p.ProcessFiles = fp.ProcessFiles
		matched = true
	}
	if w, ok := def.(Watcher); ok {
		p.Watch = w.Watch
		matched = true
	}
	if c, ok := def.(Cleaner); ok {
		p.Clean = c.Clean
		matched = true
	}
	if d, ok := def.(Disposer); ok {
		p.Dispose = d.Dispose
		matched = true
	}
	if l, ok := def.(StartListener); ok {
		p.OnStart = l.OnStart
		matched = true
	}
	if l, ok := def.(FinishListener); ok {
		p.OnFinish = l.OnFinish
		matched = true
	}
	if l, ok := def.(ChangeListener); ok {
		p.OnChange = l.OnChange
		matched = true
	}
	if l, ok := def.(ErrorListener); ok {
		p.OnError = l.OnError
		matched = true
	}
	if l, ok := def.(LogListener); ok {
		p.OnLog = l.OnLog
		matched = true
	}

	if !matched {
		return nil, fmt.Errorf("plugin: %T implements none of the plugin capabilities", def)
	}
	return p, nil
}

func nonEmpty(name string) string {
	if name == "" {
		return defaultName
	}
	return name
}
