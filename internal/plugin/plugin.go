// Package plugin normalizes loose plugin definitions into a canonical
// capability record and wraps that record in a Controller that presents a
// uniform surface to the pipeline: read, processFile, processFiles,
// watch, clean, dispose, and the five event hooks.
//
// The capability-record shape — every field an optional callable, absence
// observed by a nil check rather than a type assertion — follows
// streamspace's api/internal/plugins/base_plugin.go: a PluginHandler with
// every hook defaulted to a no-op via an embeddable Base type. Here the
// "defaulting" is just a nil function pointer; the Controller is what
// checks presence before dispatch.
package plugin

import (
	"context"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
)

// Writer is the output a processFile capability writes files into.
// Aliased here so plugin authors never import iterchan directly.
type Writer[T any] = iterchan.Writer[T]

// WatchEvent is what a watch capability yields: a changed file plus
// whether the plugin actually supplied content for it.
type WatchEvent struct {
	File        model.ChangedFile
	HasContents bool
}

// Filter decides whether a step routes a file through a plugin's
// capabilities or forwards it untouched. A nil Filter accepts everything.
type Filter func(path string) bool

// AcceptAll is the default filter: every path matches.
func AcceptAll(string) bool { return true }

// Plugin is the canonical, normalized shape every loose plugin definition
// is coerced into before a Controller wraps it. Every capability field is
// optional; a nil field means the plugin does not implement that
// capability.
type Plugin struct {
	Name   string
	Filter Filter

	Read         func(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error)
	ProcessFile  func(ctx context.Context, file model.File, run *model.Run, out *Writer[model.File]) error
	ProcessFiles func(ctx context.Context, in *iterchan.Iterable[model.File], run *model.Run) (*iterchan.Iterable[model.File], error)
	Watch        func(ctx context.Context, run *model.Run) (*iterchan.Iterable[WatchEvent], error)
	Clean        func(ctx context.Context) error
	Dispose      func(ctx context.Context) error

	OnStart  func(ctx context.Context, run model.Run) error
	OnFinish func(ctx context.Context, summary model.Summary) error
	OnChange func(ctx context.Context, file model.ChangedFile) error
	OnError  func(ctx context.Context, err error) error
	OnLog    func(ctx context.Context, event any) error
}

// HasRead, HasProcessFile, HasProcessFiles and HasWatch report capability
// presence — the pipeline uses these to skip phases cleanly rather than
// dispatching into a nil func.
func (p *Plugin) HasRead() bool         { return p.Read != nil }
func (p *Plugin) HasProcessFile() bool  { return p.ProcessFile != nil }
func (p *Plugin) HasProcessFiles() bool { return p.ProcessFiles != nil }
func (p *Plugin) HasWatch() bool        { return p.Watch != nil }
