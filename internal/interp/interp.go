// Package interp implements the tree-walking evaluator (spec §4.5): control
// flow via cooperative stack unwinding (break/continue/return/error
// propagation/quit/exit), arithmetic promotion, short-circuit and/or, the
// `?` error-propagation operator, ranges, matrix/array/struct literals, and
// field access/application.
package interp

import (
	"fmt"

	"github.com/luckboy/unlab-gpu/internal/ast"
	"github.com/luckboy/unlab-gpu/internal/env"
	"github.com/luckboy/unlab-gpu/internal/intr"
	"github.com/luckboy/unlab-gpu/internal/modtree"
	"github.com/luckboy/unlab-gpu/internal/token"
	"github.com/luckboy/unlab-gpu/internal/uerr"
	"github.com/luckboy/unlab-gpu/internal/value"
)

// Frame is one entry of the stack trace recorded on error (spec §4.5): the
// function value active at the time (nil at top level) and the position.
type Frame struct {
	Fun *value.Fun
	Pos token.Pos
}

// Interp holds the state threaded through evaluation: the Environment, the
// interrupt-check capability, the builtin table, and the accumulated stack
// trace.
type Interp struct {
	Env      *env.Env
	Intr     intr.Checker
	Builtins map[string]*value.BuiltinFun

	trace       []Frame
	curFun      *value.Fun
	returnValue value.Value
	errPropVal  value.Value
}

// New creates an Interp over env, checking interrupts via ic.
func New(e *env.Env, ic intr.Checker) *Interp {
	it := &Interp{Env: e, Intr: ic, Builtins: make(map[string]*value.BuiltinFun)}
	RegisterBuiltins(it)
	RegisterIOBuiltins(it)
	return it
}

// Trace returns a snapshot of the recorded stack trace.
func (it *Interp) Trace() []Frame { return append([]Frame(nil), it.trace...) }

func (it *Interp) pushTrace(pos token.Pos) { it.trace = append(it.trace, Frame{Fun: it.curFun, Pos: pos}) }

func (it *Interp) resetTrace() { it.trace = nil }

// Run evaluates a Tree: definitions are installed eagerly in document
// order, then (interleaved, in document order) statements are executed.
func (it *Interp) Run(tree *ast.Tree) error {
	for _, n := range tree.Nodes {
		if err := it.checkIntr(); err != nil {
			return err
		}
		if err := it.execNode(n); err != nil {
			if _, isStop := uerr.AsStop(err); !isStop {
				it.resetTrace()
				it.pushTrace(n.Position())
			}
			return err
		}
	}
	return nil
}

func (it *Interp) checkIntr() error {
	if it.Intr == nil {
		return nil
	}
	return it.Intr.Check()
}

// execBody runs a sequence of nodes, returning the last ExprStmt's value
// (used as a function's implicit return value) alongside any error.
func (it *Interp) execBody(nodes []ast.Node) (value.Value, error) {
	var last value.Value = value.None{}
	for _, n := range nodes {
		if err := it.checkIntr(); err != nil {
			return nil, err
		}
		if es, ok := n.(*ast.ExprStmt); ok {
			v, err := it.evalExpr(es.Expr)
			if err != nil {
				return nil, err
			}
			last = v
			continue
		}
		if err := it.execNode(n); err != nil {
			return nil, err
		}
	}
	return last, nil
}

func (it *Interp) execNode(n ast.Node) error {
	switch nd := n.(type) {
	case *ast.FunDef:
		path := modPathOf(it)
		fn := value.NewFun(path, nd.Name, nd.Args, nd.Body)
		it.Env.Current().SetVar(nd.Name, value.Obj{O: fn})
		if nd.HasDoc {
			it.Env.Current().SetVarDoc(nd.Name, nd.Doc)
		}
		return nil
	case *ast.ModDef:
		mod := it.Env.AddAndPushMod(nd.Name)
		if nd.HasDoc {
			mod.SetDoc(nd.Doc)
		}
		defer it.Env.PopMod()
		_, err := it.execBody(nd.Body)
		return err
	case *ast.Use:
		return it.execUse(nd)
	case *ast.ExprStmt:
		_, err := it.evalExpr(nd.Expr)
		return err
	case *ast.Assign:
		return it.execAssign(nd)
	case *ast.If:
		return it.execIf(nd)
	case *ast.For:
		return it.execFor(nd)
	case *ast.While:
		return it.execWhile(nd)
	case *ast.Break:
		return uerr.NewStop(uerr.StopBreak)
	case *ast.Continue:
		return uerr.NewStop(uerr.StopContinue)
	case *ast.Return:
		var v value.Value = value.None{}
		if nd.Value != nil {
			var err error
			v, err = it.evalExpr(nd.Value)
			if err != nil {
				return err
			}
		}
		it.returnValue = v
		return uerr.NewStop(uerr.StopReturn)
	case *ast.QuitStmt:
		return uerr.NewStop(uerr.StopQuit)
	case *ast.ExitStmt:
		code := 0
		if nd.Value != nil {
			v, err := it.evalExpr(nd.Value)
			if err != nil {
				return err
			}
			if iv, ok := v.(value.Int); ok {
				code = int(iv)
			}
		}
		return uerr.NewStopExit(code)
	default:
		return uerr.InterpAt(n.Position().Uerr(), "unsupported node")
	}
}

func modPathOf(it *Interp) []string {
	var segs []string
	for m := it.Env.Current(); m != nil && m.Parent() != nil; m = m.Parent() {
		segs = append([]string{m.Name()}, segs...)
	}
	return segs
}

func (it *Interp) execUse(n *ast.Use) error {
	mod, ok := resolvePathFromCurrent(it, n.Path)
	if !ok {
		return uerr.InterpAt(n.Pos.Uerr(), "no such module for use")
	}
	if n.Ident == "" {
		return uerr.InterpAt(n.Pos.Uerr(), "use requires a name")
	}
	if child, ok := mod.Child(n.Ident); ok {
		it.Env.Current().AddUsedModule(n.Ident, child)
		return nil
	}
	it.Env.Current().AddUsedVar(n.Ident, mod, n.Ident)
	return nil
}

func resolvePathFromCurrent(it *Interp, path []string) (*modtree.Node, bool) {
	m := it.Env.Current()
	for _, seg := range path {
		c, ok := m.Child(seg)
		if !ok {
			return nil, false
		}
		m = c
	}
	return m, true
}

func (it *Interp) execAssign(n *ast.Assign) error {
	v, err := it.evalExpr(n.Value)
	if err != nil {
		return err
	}
	switch t := n.Target.(type) {
	case *ast.Var:
		it.Env.SetVar(t.Ident, v)
		return nil
	case *ast.Abs:
		if !it.Env.SetVarAbs(t.Path, t.Ident, v) {
			return uerr.InterpAt(t.Pos.Uerr(), "no such module")
		}
		return nil
	case *ast.Rel:
		if !it.Env.SetVarRel(t.Path, t.Ident, v) {
			return uerr.InterpAt(t.Pos.Uerr(), "no such module")
		}
		return nil
	default:
		return uerr.InterpAt(n.Pos.Uerr(), "invalid assignment target")
	}
}

func (it *Interp) execIf(n *ast.If) error {
	for _, br := range n.Branches {
		if br.Cond == nil {
			_, err := it.execBody(br.Body)
			return err
		}
		c, err := it.evalExpr(br.Cond)
		if err != nil {
			return err
		}
		if truthy(c) {
			_, err := it.execBody(br.Body)
			return err
		}
	}
	return nil
}

func (it *Interp) execFor(n *ast.For) error {
	seq, err := it.evalExpr(n.Expr)
	if err != nil {
		return err
	}
	items, err := iterate(seq)
	if err != nil {
		return uerr.InterpAt(n.Pos.Uerr(), err.Error())
	}
	for _, item := range items {
		if err := it.checkIntr(); err != nil {
			return err
		}
		it.Env.SetVar(n.Var, item)
		_, err := it.execBody(n.Body)
		if err != nil {
			if s, ok := uerr.AsStop(err); ok {
				if s.Kind == uerr.StopBreak {
					return nil
				}
				if s.Kind == uerr.StopContinue {
					continue
				}
			}
			return err
		}
	}
	return nil
}

func (it *Interp) execWhile(n *ast.While) error {
	for {
		if err := it.checkIntr(); err != nil {
			return err
		}
		c, err := it.evalExpr(n.Cond)
		if err != nil {
			return err
		}
		if !truthy(c) {
			return nil
		}
		_, err = it.execBody(n.Body)
		if err != nil {
			if s, ok := uerr.AsStop(err); ok {
				if s.Kind == uerr.StopBreak {
					return nil
				}
				if s.Kind == uerr.StopContinue {
					continue
				}
			}
			return err
		}
	}
}

func truthy(v value.Value) bool {
	if b, ok := v.(value.Bool); ok {
		return bool(b)
	}
	return true
}

// iterate expands a for-loop's source expression into a slice of per-iteration
// values: ranges expand to scalars, arrays expand to their elements.
func iterate(v value.Value) ([]value.Value, error) {
	switch vv := v.(type) {
	case value.Obj:
		switch o := vv.O.(type) {
		case *value.IntRange:
			var out []value.Value
			if o.Step > 0 {
				for i := o.Start; i <= o.End; i += o.Step {
					out = append(out, value.Int(i))
				}
			} else {
				for i := o.Start; i >= o.End; i += o.Step {
					out = append(out, value.Int(i))
				}
			}
			return out, nil
		case *value.FloatRange:
			var out []value.Value
			if o.Step > 0 {
				for f := o.Start; f <= o.End; f += o.Step {
					out = append(out, value.Float(f))
				}
			} else {
				for f := o.Start; f >= o.End; f += o.Step {
					out = append(out, value.Float(f))
				}
			}
			return out, nil
		}
	case value.Ref:
		if arr, ok := vv.M.(*value.Array); ok {
			return append([]value.Value(nil), arr.Elems...), nil
		}
	}
	return nil, fmt.Errorf("value is not iterable")
}
