// Package modtree implements the hierarchical module namespace (spec §3,
// §4.3): child modules, variables, used-modules and used-variables, with
// weak parent references and weak used-module references wherever a strong
// reference would create an ownership cycle.
//
// Every node is guarded by its own sync.RWMutex (spec §5, §9: "every module
// node is behind a read-write lock"); callers must avoid recursing into a
// child while holding a parent's write lock.
package modtree

import (
	"sync"

	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// Value is the interface the modtree package needs from stored variable
// values; internal/value.Value satisfies it. Declared here (rather than
// imported) to avoid a cycle, since internal/value references modtree for
// Fun/module-path values.
type Value interface{}

// UsedVar is a used-variable alias: a reference to `Name` inside `Mod`.
type UsedVar struct {
	Mod  *Node
	Name string
}

// Node is one module in the tree.
type Node struct {
	mu sync.RWMutex

	name   string
	parent *Node // weak: never owns; nil for the root

	children map[string]*Node
	vars     map[string]Value
	usedMods map[string]*usedMod
	usedVars map[string]UsedVar

	doc     string // this module's own doc comment, if any
	hasDoc  bool
	varDocs map[string]string // per-variable doc comments, keyed by var name
}

type usedMod struct {
	node *Node
	weak bool
}

// NewRoot creates a fresh root module with no parent.
func NewRoot() *Node {
	return newNode("")
}

func newNode(name string) *Node {
	return &Node{
		name:     name,
		children: make(map[string]*Node),
		vars:     make(map[string]Value),
		usedMods: make(map[string]*usedMod),
		usedVars: make(map[string]UsedVar),
		varDocs:  make(map[string]string),
	}
}

// SetDoc records n's own doc comment (spec §4.9's doc-tree generator, one
// doc string per module alongside the variable docs below).
func (n *Node) SetDoc(doc string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.doc, n.hasDoc = doc, true
}

// Doc returns n's own doc comment, if it has one.
func (n *Node) Doc() (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.doc, n.hasDoc
}

// SetVarDoc records a doc comment for one of n's variables (a FunDef's
// preceding comment, spec §4.2).
func (n *Node) SetVarDoc(name, doc string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.varDocs[name] = doc
}

// VarDoc returns the recorded doc comment for one of n's variables.
func (n *Node) VarDoc(name string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	d, ok := n.varDocs[name]
	return d, ok
}

func (n *Node) Name() string { return n.name }

// Parent returns the node's parent, or nil at the root.
func (n *Node) Parent() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// isAncestorOf reports whether n is an ancestor of target (or equal to it),
// walking target's parent chain. O(depth), terminates because parent links
// form a tree (spec §8 acyclicity property).
func (n *Node) isAncestorOf(target *Node) bool {
	for cur := target; cur != nil; cur = cur.Parent() {
		if cur == n {
			return true
		}
	}
	return false
}

// AddChild creates name as a child of n, or returns AlreadyAddedModNode if
// child already has a parent.
func (n *Node) AddChild(name string, child *Node) error {
	child.mu.Lock()
	if child.parent != nil {
		child.mu.Unlock()
		return uerr.ErrAlreadyAddedModNode
	}
	child.parent = n
	child.mu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.children[name] = child
	return nil
}

// AddOrGetChild returns the existing child named `name`, or creates and adds
// a new one.
func (n *Node) AddOrGetChild(name string) *Node {
	n.mu.Lock()
	if c, ok := n.children[name]; ok {
		n.mu.Unlock()
		return c
	}
	n.mu.Unlock()

	c := newNode(name)
	// AddChild takes its own locks; n.parent cannot become an ancestor of c
	// concurrently since c is freshly created and unreachable until added.
	_ = n.AddChild(name, c)
	return c
}

func (n *Node) Child(name string) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[name]
	return c, ok
}

// AddUsedModule installs `target` as a used-module under `name`. If target
// is an ancestor of n, the reference is stored weak to avoid an ownership
// cycle and RecursivelyUsedModNode-style misuse is instead accepted as a
// weak alias (spec §4.3: "that relation instead stores a weak reference").
func (n *Node) AddUsedModule(name string, target *Node) {
	weak := target.isAncestorOf(n)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.usedMods[name] = &usedMod{node: target, weak: weak}
}

// AddUsedModuleStrict mirrors the source behavior of rejecting a
// recursive use outright rather than silently weakening it; callers that
// want the strict spec §4.3 "RecursivelyUsedModNode" error use this instead
// of AddUsedModule.
func (n *Node) AddUsedModuleStrict(name string, target *Node) error {
	if target.isAncestorOf(n) {
		return uerr.ErrRecursivelyUsedModNode
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.usedMods[name] = &usedMod{node: target, weak: false}
	return nil
}

func (n *Node) UsedModule(name string) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	um, ok := n.usedMods[name]
	if !ok {
		return nil, false
	}
	return um.node, true
}

func (n *Node) AddUsedVar(name string, mod *Node, target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.usedVars[name] = UsedVar{Mod: mod, Name: target}
}

func (n *Node) UsedVar(name string) (UsedVar, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	uv, ok := n.usedVars[name]
	return uv, ok
}

func (n *Node) Var(name string) (Value, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.vars[name]
	return v, ok
}

func (n *Node) SetVar(name string, v Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vars[name] = v
}

// VarNames returns a stable, sorted snapshot of variable names (used by the
// doc-tree generator and the codec; spec §8 requires resolution to be
// independent of map iteration order).
func (n *Node) VarNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.vars))
	for k := range n.vars {
		names = append(names, k)
	}
	sortStrings(names)
	return names
}

func (n *Node) ChildNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.children))
	for k := range n.children {
		names = append(names, k)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ---- Resolution (spec §4.3) ----

// ResolveAbs walks from root following only child modules.
func ResolveAbs(root *Node, path []string) (*Node, bool) {
	cur := root
	for _, seg := range path {
		c, ok := cur.Child(seg)
		if !ok {
			return nil, false
		}
		cur = c
	}
	return cur, true
}

// ResolveRel walks from `cur`; the first segment may also match a used-module
// when useModsEnabled is true.
func ResolveRel(cur *Node, path []string, useModsEnabled bool) (*Node, bool) {
	if len(path) == 0 {
		return cur, true
	}
	first := path[0]
	next, ok := cur.Child(first)
	if !ok && useModsEnabled {
		next, ok = cur.UsedModule(first)
	}
	if !ok {
		return nil, false
	}
	return ResolveAbs(next, path[1:])
}
