package fsplugin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// Destination is a processFile-capable plugin that writes every file
// it receives to Root on an afero.Fs, creating parent directories as
// needed, then forwards the file unchanged so later steps (or the
// pipeline's own output metrics) still see it.
type Destination struct {
	Fs   afero.Fs
	Root string
}

// NewDestinationPlugin normalizes a Destination into a named
// Controller-ready Plugin.
func NewDestinationPlugin(name string, d *Destination) *plugin.Plugin {
	return &plugin.Plugin{
		Name:        name,
		Filter:      plugin.AcceptAll,
		ProcessFile: d.ProcessFile,
	}
}

// ProcessFile writes f.Contents to Root/f.Path and forwards f.
func (d *Destination) ProcessFile(ctx context.Context, f model.File, run *model.Run, out *plugin.Writer[model.File]) error {
	target := filepath.Join(d.Root, f.Path)

	if err := d.Fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("fsplugin: creating directory for %s: %w", target, err)
	}
	if err := afero.WriteFile(d.Fs, target, f.Contents, 0o644); err != nil {
		return fmt.Errorf("fsplugin: writing %s: %w", target, err)
	}

	return out.Write(ctx, f)
}
