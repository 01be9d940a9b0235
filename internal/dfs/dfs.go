// Package dfs implements the generic cycle-aware depth-first traversal
// engine shared by the scripting runtime's doc-include walker (component D)
// and the package manager's dependency resolver (component K), per spec §9:
// two variants differ only in whether the visited set is owned by the
// caller (supports resuming a fresh walk from a new start vertex without
// forgetting earlier visits) or owned internally (one-shot, reset each
// call).
package dfs

// Graph is the minimal capability a traversed structure must provide:
// vertex identity and its out-edges.
type Graph interface {
	// Neighbors returns the vertices reachable directly from v.
	Neighbors(v interface{}) []interface{}
}

// Visitor is called once per vertex in DFS pre-order; returning an error
// aborts the walk and propagates the error to the caller.
type Visitor func(v interface{}) error

// PostVisitor is called once per vertex after all of its descendants have
// been visited (used by the package manager's dependent-rewrite post-visit
// step, spec §4.8).
type PostVisitor func(v interface{}) error

// ErrCycle is returned when a walk revisits a vertex already on the
// current path (as opposed to one merely visited earlier). Path holds the
// identifier sequence from the cycle root through the repeating vertex
// (spec §8 scenario 5: `Cycle([0,1,2,4,1])`); its last element always
// equals an earlier element of Path (spec §8's quantified invariant).
type ErrCycle struct {
	Vertex interface{}
	Path   []interface{}
}

func (e *ErrCycle) Error() string { return "dependency cycle detected" }

// Walker holds an externally-owned visited set, so Run can be called
// repeatedly with different start vertices while accumulating visitation
// history across calls (spec §9's "externally-tracked" variant; this is
// the only variant that supports resuming from a new start vertex).
type Walker struct {
	g       Graph
	visited map[interface{}]bool
	onStack map[interface{}]bool
	path    []interface{}
	pre     Visitor
	post    PostVisitor
}

// NewWalker creates a Walker over g. pre runs on first visit of each
// vertex; post (optional, may be nil) runs after all descendants return.
func NewWalker(g Graph, pre Visitor, post PostVisitor) *Walker {
	return &Walker{
		g:       g,
		visited: make(map[interface{}]bool),
		onStack: make(map[interface{}]bool),
		pre:     pre,
		post:    post,
	}
}

// Visited reports whether v has been visited by any Run call so far.
func (w *Walker) Visited(v interface{}) bool { return w.visited[v] }

// Run walks from start, skipping any vertex already visited by a prior
// Run call on this Walker. Returns *ErrCycle if the walk would revisit a
// vertex currently on the active path.
func (w *Walker) Run(start interface{}) error {
	return w.visit(start)
}

func (w *Walker) visit(v interface{}) error {
	if w.onStack[v] {
		return &ErrCycle{Vertex: v, Path: w.cyclePath(v)}
	}
	if w.visited[v] {
		return nil
	}
	w.onStack[v] = true
	w.path = append(w.path, v)
	defer func() {
		delete(w.onStack, v)
		w.path = w.path[:len(w.path)-1]
	}()

	if w.pre != nil {
		if err := w.pre(v); err != nil {
			return err
		}
	}
	w.visited[v] = true
	for _, n := range w.g.Neighbors(v) {
		if err := w.visit(n); err != nil {
			return err
		}
	}
	if w.post != nil {
		if err := w.post(v); err != nil {
			return err
		}
	}
	return nil
}

// cyclePath returns the identifier sequence from the walk's root through
// the vertex whose neighbor closes the cycle, plus the repeated vertex v
// (spec §8 scenario 5: `Cycle([0,1,2,4,1])`, the full root-to-here path
// with the back-edge target appended, not just the shorter loop within it).
func (w *Walker) cyclePath(v interface{}) []interface{} {
	return append(append([]interface{}(nil), w.path...), v)
}

// Run performs a single one-shot traversal from start with an internally
// owned, freshly-initialized visited set (spec §9's "internally-tracked"
// variant). Unlike Walker, it cannot be resumed: each call starts clean.
func Run(g Graph, start interface{}, pre Visitor, post PostVisitor) error {
	return NewWalker(g, pre, post).Run(start)
}
