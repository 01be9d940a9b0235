package dfs

import (
	"reflect"
	"testing"
)

// intGraph implements Graph over a fixed adjacency list keyed by int.
type intGraph map[int][]int

func (g intGraph) Neighbors(v interface{}) []interface{} {
	out := make([]interface{}, 0, len(g[v.(int)]))
	for _, n := range g[v.(int)] {
		out = append(out, n)
	}
	return out
}

// Grounded on spec §8 scenario 5 (graph 0:[1,2,3,5], 1:[2], 2:[3,4], 4:[1],
// from start 0): the back-edge 4->1 yields Cycle([0,1,2,4,1]); the walk
// aborts before visiting 5, so only [0,1,2,3,4] are pre-visited and only 3
// ever completes (post-order [3]) — nothing above it on the path finishes
// once the cycle error propagates.
func TestDFSDetectsCycle(t *testing.T) {
	g := intGraph{0: {1, 2, 3, 5}, 1: {2}, 2: {3, 4}, 3: {}, 4: {1}, 5: {}}

	var pre, post []interface{}
	w := NewWalker(g, func(v interface{}) error {
		pre = append(pre, v)
		return nil
	}, func(v interface{}) error {
		post = append(post, v)
		return nil
	})

	err := w.Run(0)
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
	cycle, ok := err.(*ErrCycle)
	if !ok {
		t.Fatalf("expected *ErrCycle, got %#v", err)
	}

	want := []interface{}{0, 1, 2, 4, 1}
	if !reflect.DeepEqual(cycle.Path, want) {
		t.Errorf("cycle path: got %v, want %v", cycle.Path, want)
	}
	if cycle.Path[len(cycle.Path)-1] != cycle.Path[1] {
		t.Errorf("cycle path's last element should repeat an earlier one")
	}

	wantPre := []interface{}{0, 1, 2, 3, 4}
	if !reflect.DeepEqual(pre, wantPre) {
		t.Errorf("pre-order: got %v, want %v", pre, wantPre)
	}
	wantPost := []interface{}{3}
	if !reflect.DeepEqual(post, wantPost) {
		t.Errorf("post-order (nothing else completes before the cycle aborts the walk): got %v, want %v", post, wantPost)
	}
}

// Grounded on spec §9's open question: the externally-tracked Walker
// supports resuming from a new start vertex while preserving visited
// state, so a shared descendant is not re-visited (and does not re-fire
// pre).
func TestDFSWalkerResumesAcrossRuns(t *testing.T) {
	g := intGraph{0: {2}, 1: {2}, 2: {}}
	var visits []interface{}
	w := NewWalker(g, func(v interface{}) error {
		visits = append(visits, v)
		return nil
	}, nil)

	if err := w.Run(0); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(1); err != nil {
		t.Fatal(err)
	}
	want := []interface{}{0, 2, 1}
	if !reflect.DeepEqual(visits, want) {
		t.Errorf("got %v, want %v", visits, want)
	}
}

// Grounded on spec §8's quantified invariant: "DFS detects every
// back-edge". A self-loop is the minimal back-edge case.
func TestDFSDetectsSelfLoop(t *testing.T) {
	g := intGraph{0: {0}}
	w := NewWalker(g, nil, nil)
	err := w.Run(0)
	cycle, ok := err.(*ErrCycle)
	if !ok {
		t.Fatalf("expected *ErrCycle, got %#v", err)
	}
	want := []interface{}{0, 0}
	if !reflect.DeepEqual(cycle.Path, want) {
		t.Errorf("got %v, want %v", cycle.Path, want)
	}
}
