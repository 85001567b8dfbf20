package watch

import (
	"testing"
	"time"

	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

func changedAt(t *testing.T, path string, kind model.ChangeKind, at time.Time, contents string) plugin.WatchEvent {
	f, err := model.NewWithContents(path, []byte(contents))
	if err != nil {
		t.Fatalf("NewWithContents: %v", err)
	}
	f.ModifiedAt = at
	cf, err := model.NewChangedFile(f, kind)
	if err != nil {
		t.Fatalf("NewChangedFile: %v", err)
	}
	return plugin.WatchEvent{File: cf, HasContents: contents != ""}
}

func TestDeduplicateBatchDeletedThenCreatedIsModified(t *testing.T) {
	t0 := time.Now()
	events := []plugin.WatchEvent{
		changedAt(t, "file1.txt", model.Deleted, t0, ""),
		changedAt(t, "file1.txt", model.Created, t0.Add(time.Millisecond), "New contents"),
	}

	out := DeduplicateBatch(events)
	if len(out) != 1 {
		t.Fatalf("expected 1 changed file, got %d", len(out))
	}
	if out[0].Change != model.Modified {
		t.Fatalf("expected effective Modified, got %v", out[0].Change)
	}
	if string(out[0].Contents) != "New contents" {
		t.Fatalf("expected latest contents, got %q", out[0].Contents)
	}
}

func TestDeduplicateBatchCreatedThenModifiedIsCreated(t *testing.T) {
	t0 := time.Now()
	events := []plugin.WatchEvent{
		changedAt(t, "new.txt", model.Created, t0, "v1"),
		changedAt(t, "new.txt", model.Modified, t0.Add(time.Millisecond), "v2"),
	}

	out := DeduplicateBatch(events)
	if len(out) != 1 || out[0].Change != model.Created {
		t.Fatalf("expected effective Created, got %+v", out)
	}
}

func TestDeduplicateBatchLastDeletedWins(t *testing.T) {
	t0 := time.Now()
	events := []plugin.WatchEvent{
		changedAt(t, "gone.txt", model.Created, t0, "v1"),
		changedAt(t, "gone.txt", model.Modified, t0.Add(time.Millisecond), "v2"),
		changedAt(t, "gone.txt", model.Deleted, t0.Add(2*time.Millisecond), ""),
	}

	out := DeduplicateBatch(events)
	if len(out) != 1 || out[0].Change != model.Deleted {
		t.Fatalf("expected effective Deleted, got %+v", out)
	}
}

func TestDeduplicateBatchDistinctPathsKeptSeparate(t *testing.T) {
	t0 := time.Now()
	events := []plugin.WatchEvent{
		changedAt(t, "a.txt", model.Deleted, t0, ""),
		changedAt(t, "b.txt", model.Deleted, t0, ""),
		changedAt(t, "c.txt", model.Deleted, t0, ""),
	}

	out := DeduplicateBatch(events)
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct changed files, got %d", len(out))
	}
}
