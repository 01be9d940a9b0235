// Package doctree implements the read-only doc-tree view (spec §4.9,
// components D+L): a module-by-module signature summary plus the doc
// comments recorded during parsing. No builtin or command of this module
// builds or prints the view: there is no `doc` or `runwithdoc` builtin.
// Grounded on
// original_source/src/doc.rs's `DocTree`/`DocTreeReadGuard`/`Sig` (there
// built as two parallel ModNode<Sig,()> / ModNode<String, Option<String>>
// trees guarded by separate RwLocks; collapsed here into a single read view
// over internal/modtree.Node, since that package already stores both the
// live value and the doc string per variable behind one lock, making a
// second parallel tree redundant).
package doctree

import (
	"sort"

	"github.com/luckboy/unlab-gpu/internal/modtree"
	"github.com/luckboy/unlab-gpu/internal/value"
)

// BuiltinFunArgKind distinguishes a builtin's declared argument shape (spec
// §4.9's `BuiltinFunArg` enum: `Arg`, `OptArg`, `DotDotDot`).
type BuiltinFunArgKind int

const (
	ArgRequired BuiltinFunArgKind = iota
	ArgOptional
	ArgDotDotDot
)

type BuiltinFunArg struct {
	Name string
	Kind BuiltinFunArgKind
}

// Sig is a variable's signature: a plain value, a script-defined function's
// argument names, or a builtin's argument shape (spec §4.9's `Sig` enum).
type Sig struct {
	IsFun        bool
	IsBuiltinFun bool
	FunArgs      []string
	BuiltinArgs  []BuiltinFunArg
}

// SigOf computes v's Sig (spec §4.9: "a Var has no further detail; a Fun
// records its argument names; a BuiltinFun records its declared argument
// shape"). Builtins in this runtime don't declare per-argument arity
// (value.BuiltinFun is a plain variadic Go closure), so every builtin's
// signature is reported as a single DotDotDot argument named "args" rather
// than invented per-builtin arg specs that don't exist anywhere in this
// codebase.
func SigOf(v value.Value) Sig {
	obj, ok := v.(value.Obj)
	if !ok {
		return Sig{}
	}
	switch fn := obj.O.(type) {
	case *value.Fun:
		return Sig{IsFun: true, FunArgs: append([]string(nil), fn.Args...)}
	case *value.BuiltinFun:
		return Sig{IsBuiltinFun: true, BuiltinArgs: []BuiltinFunArg{{Name: "args", Kind: ArgDotDotDot}}}
	default:
		return Sig{}
	}
}

// VarEntry is one documented variable in a module.
type VarEntry struct {
	Name string
	Sig  Sig
	Doc  string
	HasDoc bool
}

// Tree is a read-only doc view rooted at a modtree.Node.
type Tree struct {
	node *modtree.Node
}

// New wraps node as a Tree.
func New(node *modtree.Node) Tree { return Tree{node: node} }

// Desc returns the module's own doc comment, if any (spec §4.9's
// `DocTreeReadGuard::desc`).
func (t Tree) Desc() (string, bool) { return t.node.Doc() }

// Vars returns every variable in the module, sorted by name, each paired
// with its signature and doc comment (spec §4.9's `var_desc_pairs`).
func (t Tree) Vars() []VarEntry {
	names := t.node.VarNames()
	out := make([]VarEntry, 0, len(names))
	for _, name := range names {
		v, ok := t.node.Var(name)
		if !ok {
			continue
		}
		doc, hasDoc := t.node.VarDoc(name)
		out = append(out, VarEntry{Name: name, Sig: SigOf(v.(value.Value)), Doc: doc, HasDoc: hasDoc})
	}
	return out
}

// Subtrees returns every child module as a (name, Tree) pair, sorted by
// name (spec §4.9's `subtrees`).
func (t Tree) Subtrees() []struct {
	Name string
	Tree Tree
} {
	names := t.node.ChildNames()
	sort.Strings(names)
	out := make([]struct {
		Name string
		Tree Tree
	}, 0, len(names))
	for _, name := range names {
		c, ok := t.node.Child(name)
		if !ok {
			continue
		}
		out = append(out, struct {
			Name string
			Tree Tree
		}{Name: name, Tree: New(c)})
	}
	return out
}
