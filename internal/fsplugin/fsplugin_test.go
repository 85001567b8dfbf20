package fsplugin

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/crimson-sun/forge/internal/iterchan"
	"github.com/crimson-sun/forge/internal/model"
)

func TestSourceReadYieldsFiles(t *testing.T) {
	mem := afero.NewMemMapFs()
	if err := afero.WriteFile(mem, "/site/a.txt", []byte("a"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := afero.WriteFile(mem, "/site/nested/b.txt", []byte("b"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	src := &Source{Fs: mem, Root: "/site"}
	it, err := src.Read(context.Background(), &model.Run{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	files, err := iterchan.Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
}

func TestDestinationProcessFileWritesAndForwards(t *testing.T) {
	mem := afero.NewMemMapFs()
	dest := &Destination{Fs: mem, Root: "/out"}

	f, err := model.NewWithContents("a/b.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("NewWithContents: %v", err)
	}

	w := iterchan.NewChannel[model.File]()
	done := make(chan struct{})
	var got model.File
	go func() {
		v, ok, err := w.Iterable().Next(context.Background())
		if err != nil || !ok {
			t.Errorf("Next: ok=%v err=%v", ok, err)
		}
		got = v
		close(done)
	}()

	if err := dest.ProcessFile(context.Background(), f, &model.Run{}, w); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	<-done

	if got.Path != f.Path {
		t.Fatalf("expected forwarded path %q, got %q", f.Path, got.Path)
	}

	contents, err := afero.ReadFile(mem, "/out/a/b.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(contents) != "hello" {
		t.Fatalf("expected written contents %q, got %q", "hello", contents)
	}
}
