// Package env implements the Environment (spec §4.4): the module stack used
// to restore the current module, the function-call frame stack holding
// locals, and the variable resolution/assignment rules of spec §4.3.
package env

import (
	"github.com/luckboy/unlab-gpu/internal/modtree"
	"github.com/luckboy/unlab-gpu/internal/value"
)

// Frame is one function-call activation: its locals and the module the
// callee belongs to (used for unqualified name lookup inside the body).
type Frame struct {
	Mod    *modtree.Node
	Locals map[string]value.Value
}

// Env holds everything spec §4.4 assigns to the Environment.
type Env struct {
	Root *modtree.Node
	cur  *modtree.Node
	// modStack restores `cur` on PopMod; it is the stack of modules entered
	// via AddAndPushMod, independent from the call-frame stack.
	modStack []*modtree.Node
	frames   []*Frame
}

// New creates an Environment rooted at root, starting at root.
func New(root *modtree.Node) *Env {
	return &Env{Root: root, cur: root}
}

// Current returns the module currently in scope.
func (e *Env) Current() *modtree.Node { return e.cur }

// AddAndPushMod creates a child of the current module, or reuses the
// existing child of that name unchanged, and descends into it.
func (e *Env) AddAndPushMod(name string) *modtree.Node {
	child := e.cur.AddOrGetChild(name)
	e.modStack = append(e.modStack, e.cur)
	e.cur = child
	return child
}

// PopMod ascends to the module saved by the matching AddAndPushMod.
func (e *Env) PopMod() {
	n := len(e.modStack)
	if n == 0 {
		return
	}
	e.cur = e.modStack[n-1]
	e.modStack = e.modStack[:n-1]
}

// PushFunModAndLocalVars locates the module named by path (relative to
// root), binds args to values positionally, and makes it current with a
// fresh local frame. Returns ok=false (args/values length mismatch) or
// noFunMod=true (path does not resolve).
func (e *Env) PushFunModAndLocalVars(path []string, args []string, values []value.Value) (ok bool, noFunMod bool) {
	mod, found := modtree.ResolveAbs(e.Root, path)
	if !found {
		return false, true
	}
	if len(args) != len(values) {
		return false, false
	}
	locals := make(map[string]value.Value, len(args))
	for i, a := range args {
		locals[a] = values[i]
	}
	e.modStack = append(e.modStack, e.cur)
	e.cur = mod
	e.frames = append(e.frames, &Frame{Mod: mod, Locals: locals})
	return true, false
}

// PopFunModAndLocalVars undoes the matching PushFunModAndLocalVars.
func (e *Env) PopFunModAndLocalVars() {
	n := len(e.frames)
	if n > 0 {
		e.frames = e.frames[:n-1]
	}
	e.PopMod()
}

// InFunction reports whether a call frame is active.
func (e *Env) InFunction() bool { return len(e.frames) > 0 }

func (e *Env) topFrame() *Frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

// Var resolves a bare `Var(ident)`: innermost local frame, then current
// module's variables, then its used-variables (spec §4.3).
func (e *Env) Var(name string) (value.Value, bool) {
	if f := e.topFrame(); f != nil {
		if v, ok := f.Locals[name]; ok {
			return v, true
		}
	}
	if v, ok := e.cur.Var(name); ok {
		return v.(value.Value), true
	}
	if uv, ok := e.cur.UsedVar(name); ok {
		return e.resolveUsedVar(uv, map[*modtree.Node]bool{})
	}
	return nil, false
}

func (e *Env) resolveUsedVar(uv modtree.UsedVar, seen map[*modtree.Node]bool) (value.Value, bool) {
	if seen[uv.Mod] {
		return nil, false
	}
	seen[uv.Mod] = true
	if v, ok := uv.Mod.Var(uv.Name); ok {
		return v.(value.Value), true
	}
	if next, ok := uv.Mod.UsedVar(uv.Name); ok {
		return e.resolveUsedVar(next, seen)
	}
	return nil, false
}

// VarAbs resolves Abs(path, ident): walk from root through children only.
func (e *Env) VarAbs(path []string, ident string) (value.Value, bool) {
	mod, ok := modtree.ResolveAbs(e.Root, path)
	if !ok {
		return nil, false
	}
	if v, ok := mod.Var(ident); ok {
		return v.(value.Value), true
	}
	return nil, false
}

// VarRel resolves Rel(path, ident): walk from current module; the first
// segment may also match a used-module.
func (e *Env) VarRel(path []string, ident string) (value.Value, bool) {
	mod, ok := modtree.ResolveRel(e.cur, path, true)
	if !ok {
		return nil, false
	}
	if v, ok := mod.Var(ident); ok {
		return v.(value.Value), true
	}
	return nil, false
}

// SetVar assigns a bare `Var(ident)`: a local in the current frame shadows
// both module variables and used-variable aliases and is written to
// directly; otherwise writes follow used-variable aliases through to their
// target cell (spec §4.4).
func (e *Env) SetVar(name string, v value.Value) {
	if f := e.topFrame(); f != nil {
		if _, ok := f.Locals[name]; ok {
			f.Locals[name] = v
			return
		}
	}
	if uv, ok := e.cur.UsedVar(name); ok {
		e.setUsedVar(uv, v, map[*modtree.Node]bool{})
		return
	}
	e.cur.SetVar(name, v)
}

func (e *Env) setUsedVar(uv modtree.UsedVar, v value.Value, seen map[*modtree.Node]bool) {
	if seen[uv.Mod] {
		return
	}
	seen[uv.Mod] = true
	if next, ok := uv.Mod.UsedVar(uv.Name); ok {
		e.setUsedVar(next, v, seen)
		return
	}
	uv.Mod.SetVar(uv.Name, v)
}

// SetVarAbs creates-or-updates ident in the module named by path, if it
// exists; the path itself is never autocreated (spec §4.3).
func (e *Env) SetVarAbs(path []string, ident string, v value.Value) bool {
	mod, ok := modtree.ResolveAbs(e.Root, path)
	if !ok {
		return false
	}
	mod.SetVar(ident, v)
	return true
}

func (e *Env) SetVarRel(path []string, ident string, v value.Value) bool {
	mod, ok := modtree.ResolveRel(e.cur, path, true)
	if !ok {
		return false
	}
	mod.SetVar(ident, v)
	return true
}

// Reset clears the call-frame stack and restores current module to root,
// without destroying the module tree (spec §4.4).
func (e *Env) Reset() {
	e.frames = nil
	e.modStack = nil
	e.cur = e.Root
}
