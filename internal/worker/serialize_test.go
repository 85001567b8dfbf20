package worker

import (
	"fmt"
	"testing"
)

type node struct {
	Name string
	Next *node
}

func TestProjectPrimitivesPassThrough(t *testing.T) {
	if got := Project(42, 0); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
	if got := Project("hello", 0); got != "hello" {
		t.Fatalf("expected hello, got %v", got)
	}
}

func TestProjectStructWalksFields(t *testing.T) {
	type point struct{ X, Y int }
	got := Project(point{X: 1, Y: 2}, 0)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["X"] != 1 || m["Y"] != 2 {
		t.Fatalf("unexpected fields: %+v", m)
	}
}

func TestProjectBreaksCycles(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	got := Project(a, 0)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["Name"] != "a" {
		t.Fatalf("unexpected root: %+v", m)
	}
	// Should terminate rather than recurse forever; that it returned at
	// all is the assertion.
}

func TestProjectErrorBecomesRecord(t *testing.T) {
	err := fmt.Errorf("boom")
	got := Project(err, 0)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["message"] != "boom" {
		t.Fatalf("expected message=boom, got %+v", m)
	}
}

func TestProjectDropsFunctions(t *testing.T) {
	type withFunc struct {
		Name string
		Fn   func()
	}
	got := Project(withFunc{Name: "x", Fn: func() {}}, 0)
	m := got.(map[string]any)
	if _, ok := m["Fn"]; ok {
		t.Fatalf("expected Fn to be dropped, got %+v", m)
	}
	if m["Name"] != "x" {
		t.Fatalf("unexpected Name: %+v", m)
	}
}
