// Package watch coordinates watch-capable plugins: it joins their
// change streams, debounces bursts within a quiet window, collapses
// each burst to one ChangedFile per path, and dispatches a partial run
// through a pipeline for every resulting batch.
//
// The per-path grouping and "last event wins, with history-aware
// overrides" merge rule generalizes the teacher's
// internal/engine/dedup.Deduplicator.DeduplicateBatch, which collapses
// same-key events within a time window into one, count-annotated event
// — here the key is a file path rather than Type+Category, and the
// merge produces an effective ChangeKind instead of an occurrence
// count.
package watch

import (
	"sort"

	"github.com/crimson-sun/forge/internal/model"
	"github.com/crimson-sun/forge/internal/plugin"
)

// DeduplicateBatch collapses a burst of watch events into one
// ChangedFile per distinct path, in first-occurrence order.
func DeduplicateBatch(events []plugin.WatchEvent) []model.ChangedFile {
	if len(events) == 0 {
		return nil
	}

	type group struct {
		events []plugin.WatchEvent
	}

	order := make([]string, 0, len(events))
	groups := make(map[string]*group, len(events))
	for _, ev := range events {
		path := ev.File.Path
		g, ok := groups[path]
		if !ok {
			g = &group{}
			groups[path] = g
			order = append(order, path)
		}
		g.events = append(g.events, ev)
	}

	out := make([]model.ChangedFile, 0, len(order))
	for _, path := range order {
		out = append(out, collapse(groups[path].events))
	}
	return out
}

// collapse merges one path's burst of events into a single ChangedFile
// per the rules in spec §4.5: sort by ModifiedAt, derive the effective
// kind from the first and last event, and take contents from the
// latest event that actually carried them.
func collapse(events []plugin.WatchEvent) model.ChangedFile {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].File.ModifiedAt.Before(events[j].File.ModifiedAt)
	})

	first := events[0].File.Change
	last := events[len(events)-1].File.Change
	kind := effectiveKind(first, last)

	result := events[len(events)-1].File
	result.Change = kind

	for i := len(events) - 1; i >= 0; i-- {
		if events[i].HasContents {
			result.Contents = events[i].File.Contents
			break
		}
		if i == 0 {
			result.Contents = nil
		}
	}

	return result
}

// effectiveKind implements the table in spec §4.5: last=Created and
// first!=Created nets to Modified; last=Modified with first=Created
// nets to Created (the whole burst is a new file's birth); last=Deleted
// always wins; otherwise the last event's kind stands as-is.
func effectiveKind(first, last model.ChangeKind) model.ChangeKind {
	switch {
	case last == model.Deleted:
		return model.Deleted
	case last == model.Created && first != model.Created:
		return model.Modified
	case last == model.Modified && first == model.Created:
		return model.Created
	default:
		return last
	}
}
