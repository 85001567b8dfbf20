// Package fsplugin provides a demonstration source/destination plugin
// pair backed by afero.Fs: Source walks a root directory and yields
// every regular file it finds as a model.File, Destination writes each
// file it receives to a root directory, creating parent directories as
// needed.
//
// Grounded on the teacher's internal/output/file.Output — buffered,
// path-rooted file I/O — generalized from "one append-only NDJSON
// file" to "arbitrary virtual files under a root", and from os
// directly to afero.Fs so the pair is exercised against an in-memory
// filesystem in tests without touching disk.
package fsplugin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// Source is a read-capable plugin that walks Root on an afero.Fs and
// yields every regular file beneath it as a model.File with a
// root-relative Path.
type Source struct {
	Fs   afero.Fs
	Root string
}

// NewSourcePlugin normalizes a Source into a named Controller-ready
// Plugin.
func NewSourcePlugin(name string, s *Source) *plugin.Plugin {
	return &plugin.Plugin{
		Name:   name,
		Filter: plugin.AcceptAll,
		Read:   s.Read,
	}
}

// Read walks s.Root and pushes one model.File per regular file found
// into the returned iterable, in directory-walk order.
func (s *Source) Read(ctx context.Context, run *model.Run) (*iterchan.Iterable[model.File], error) {
	w := iterchan.NewChannel[model.File]()

	go func() {
		err := afero.Walk(s.Fs, s.Root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(s.Root, path)
			if err != nil {
				return fmt.Errorf("fsplugin: relativizing %s: %w", path, err)
			}

			contents, err := afero.ReadFile(s.Fs, path)
			if err != nil {
				return fmt.Errorf("fsplugin: reading %s: %w", path, err)
			}

			f, err := model.NewWithContents(rel, contents)
			if err != nil {
				return err
			}
			f.ModifiedAt = info.ModTime()
			f.CreatedAt = info.ModTime()

			return w.Write(ctx, f)
		})

		if err != nil {
			w.Throw(fmt.Errorf("fsplugin: walking %s: %w", s.Root, err))
			return
		}
		w.End()
	}()

	return w.Iterable(), nil
}
