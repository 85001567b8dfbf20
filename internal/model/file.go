// Package model holds the data types that flow through a forge pipeline:
// File, ChangedFile, Run and Summary.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// File is a virtual file flowing through the pipeline. It is mutable by
// plugins — a processFile call is free to rewrite Contents, Metadata or
// the timestamps in place — but Path is always relative and normalized to
// the host separator.
type File struct {
	// Source is the origin tag: the name of the plugin controller that
	// produced this file, set by Controller.Read (or Controller.Watch for
	// change events) and never touched again by the pipeline itself.
	Source string

	// Path is relative, normalized to filepath.Separator. Never absolute.
	Path string

	CreatedAt  time.Time
	ModifiedAt time.Time

	// Metadata carries plugin-specific, string-keyed data alongside the
	// file. Never nil after New.
	Metadata map[string]any

	Contents []byte
}

// New constructs a File with the given path. Returns an error if path is
// absolute — absolute paths are rejected at construction per spec.
func New(path string) (File, error) {
	return NewWithContents(path, nil)
}

// NewWithContents constructs a File with the given path and contents.
func NewWithContents(path string, contents []byte) (File, error) {
	clean, err := normalizePath(path)
	if err != nil {
		return File{}, err
	}
	now := time.Now()
	return File{
		Path:       clean,
		CreatedAt:  now,
		ModifiedAt: now,
		Metadata:   map[string]any{},
		Contents:   contents,
	}, nil
}

// normalizePath rejects absolute paths and normalizes separators.
func normalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("model: file path must not be empty")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("model: file path %q must be relative", path)
	}
	return filepath.Clean(path), nil
}

// Size returns the length of Contents in bytes.
func (f File) Size() int {
	return len(f.Contents)
}

// Clone returns a deep-enough copy of f suitable for fan-out: Metadata is
// copied so two branches of a fan-out can mutate it independently, but
// Contents is shared (copy-on-write is left to the plugin, matching the
// teacher's output types which never defensively copy byte slices).
func (f File) Clone() File {
	md := make(map[string]any, len(f.Metadata))
	for k, v := range f.Metadata {
		md[k] = v
	}
	f.Metadata = md
	return f
}

// WithPath returns a copy of f with Path set, validated and normalized.
func (f File) WithPath(path string) (File, error) {
	clean, err := normalizePath(path)
	if err != nil {
		return File{}, err
	}
	f.Path = clean
	return f, nil
}
