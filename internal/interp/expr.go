package interp

import (
	"github.com/luckboy/unlab-gpu/internal/ast"
	"github.com/luckboy/unlab-gpu/internal/backend"
	"github.com/luckboy/unlab-gpu/internal/uerr"
	"github.com/luckboy/unlab-gpu/internal/value"
)

func (it *Interp) evalExpr(e ast.Expr) (value.Value, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return value.Int(n.Val), nil
	case *ast.FloatLit:
		return value.Float(n.Val), nil
	case *ast.StringLit:
		return value.Obj{O: value.NewString(n.Val)}, nil
	case *ast.BoolLit:
		return value.Bool(n.Val), nil
	case *ast.NoneLit:
		return value.None{}, nil
	case *ast.NameExpr:
		return it.evalName(n.Name)
	case *ast.Unary:
		return it.evalUnary(n)
	case *ast.Binary:
		return it.evalBinary(n)
	case *ast.Logic:
		return it.evalLogic(n)
	case *ast.Range:
		return it.evalRange(n)
	case *ast.FieldAccess:
		return it.evalFieldAccess(n)
	case *ast.Index:
		return it.evalIndex(n)
	case *ast.Call:
		return it.evalCall(n)
	case *ast.MatrixLit:
		return it.evalMatrixLit(n)
	case *ast.ArrayLit:
		return it.evalArrayLit(n)
	case *ast.StructLit:
		return it.evalStructLit(n)
	default:
		return nil, uerr.InterpAt(e.Position().Uerr(), "unsupported expression")
	}
}

func (it *Interp) evalName(n ast.Name) (value.Value, error) {
	switch t := n.(type) {
	case *ast.Var:
		if v, ok := it.Env.Var(t.Ident); ok {
			return v, nil
		}
		return nil, uerr.InterpAt(t.Pos.Uerr(), "undefined variable: "+t.Ident)
	case *ast.Abs:
		if v, ok := it.Env.VarAbs(t.Path, t.Ident); ok {
			return v, nil
		}
		return nil, uerr.InterpAt(t.Pos.Uerr(), "undefined variable: "+t.Ident)
	case *ast.Rel:
		if v, ok := it.Env.VarRel(t.Path, t.Ident); ok {
			return v, nil
		}
		return nil, uerr.InterpAt(t.Pos.Uerr(), "undefined variable: "+t.Ident)
	default:
		return nil, uerr.InterpAt(n.Position().Uerr(), "invalid name")
	}
}

func (it *Interp) evalUnary(n *ast.Unary) (value.Value, error) {
	switch n.Op {
	case ast.ErrorProp:
		v, err := it.evalExpr(n.X)
		if err != nil {
			return nil, err
		}
		if _, isNone := v.(value.None); isNone {
			it.returnValue = value.None{}
			return nil, uerr.NewStop(uerr.StopReturn)
		}
		if obj, ok := v.(value.Obj); ok {
			if errObj, ok := obj.O.(*value.ErrorObj); ok {
				it.returnValue = value.Obj{O: errObj}
				return nil, uerr.NewStop(uerr.StopErrorPropagation)
			}
		}
		return v, nil
	}

	v, err := it.evalExpr(n.X)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.Neg:
		switch x := v.(type) {
		case value.Int:
			return value.Int(-x), nil
		case value.Float:
			return value.Float(-x), nil
		default:
			return nil, uerr.InterpAt(n.Pos.Uerr(), "negation requires a number")
		}
	case ast.Not:
		return value.Bool(!truthy(v)), nil
	case ast.Transpose:
		m, err := asMatrixBackend(v)
		if err != nil {
			return nil, uerr.InterpAt(n.Pos.Uerr(), err.Error())
		}
		return value.Obj{O: value.NewMatrix(m.Transpose())}, nil
	}
	return nil, uerr.InterpAt(n.Pos.Uerr(), "unsupported unary operator")
}

func asMatrixBackend(v value.Value) (backend.MatrixBackend, error) {
	obj, ok := v.(value.Obj)
	if !ok {
		return nil, errNotMatrix
	}
	switch o := obj.O.(type) {
	case *value.Matrix:
		return o.B, nil
	case *value.MatrixArray:
		return backend.New(o.Rows, o.Cols, o.Data), nil
	}
	return nil, errNotMatrix
}

var errNotMatrix = errType("value is not a matrix")

type errType string

func (e errType) Error() string { return string(e) }

func (it *Interp) evalBinary(n *ast.Binary) (value.Value, error) {
	x, err := it.evalExpr(n.X)
	if err != nil {
		return nil, err
	}
	y, err := it.evalExpr(n.Y)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.Add, ast.Sub, ast.Mul, ast.Div:
		if isMatrixOperand(x) || isMatrixOperand(y) {
			return it.matrixArith(n.Pos.Uerr(), n.Op, x, y)
		}
		return arith(n.Op, x, y)
	case ast.ElemMul, ast.ElemDiv:
		return it.matrixArith(n.Pos.Uerr(), n.Op, x, y)
	case ast.CmpLt, ast.CmpLe, ast.CmpGt, ast.CmpGe, ast.CmpEq, ast.CmpNe:
		return compare(n.Op, x, y)
	}
	return nil, uerr.InterpAt(n.Pos.Uerr(), "unsupported binary operator")
}

func isMatrixOperand(v value.Value) bool {
	obj, ok := v.(value.Obj)
	if !ok {
		return false
	}
	switch obj.O.(type) {
	case *value.Matrix, *value.MatrixArray, *value.MatrixRowSlice:
		return true
	}
	return false
}

// arith promotes Int to Float when either side is Float (spec §4.5).
func arith(op ast.BinOp, x, y value.Value) (value.Value, error) {
	xi, xIsInt := x.(value.Int)
	yi, yIsInt := y.(value.Int)
	if xIsInt && yIsInt {
		switch op {
		case ast.Add:
			return value.Int(xi + yi), nil
		case ast.Sub:
			return value.Int(xi - yi), nil
		case ast.Mul:
			return value.Int(xi * yi), nil
		case ast.Div:
			if yi == 0 {
				return value.Obj{O: value.NewError("arith", "division by zero")}, nil
			}
			return value.Int(xi / yi), nil
		}
	}
	xf, ok1 := toFloat(x)
	yf, ok2 := toFloat(y)
	if !ok1 || !ok2 {
		return nil, errType("arithmetic requires numbers")
	}
	switch op {
	case ast.Add:
		return value.Float(xf + yf), nil
	case ast.Sub:
		return value.Float(xf - yf), nil
	case ast.Mul:
		return value.Float(xf * yf), nil
	case ast.Div:
		return value.Float(xf / yf), nil
	}
	return nil, errType("unsupported operator")
}

func toFloat(v value.Value) (float32, bool) {
	switch x := v.(type) {
	case value.Int:
		return float32(x), true
	case value.Float:
		return float32(x), true
	}
	return 0, false
}

func (it *Interp) matrixArith(pos uerrPos, op ast.BinOp, x, y value.Value) (value.Value, error) {
	mx, err := asMatrixBackend(x)
	if err != nil {
		return nil, uerr.InterpAt(pos, err.Error())
	}
	my, err := asMatrixBackend(y)
	if err != nil {
		return nil, uerr.InterpAt(pos, err.Error())
	}
	var res backend.MatrixBackend
	switch op {
	case ast.Add:
		res, err = mx.Add(my)
	case ast.Sub:
		res, err = mx.Sub(my)
	case ast.Mul:
		res, err = mx.Mul(my)
	case ast.ElemMul:
		res, err = mx.ElemMul(my)
	case ast.ElemDiv:
		res, err = mx.ElemDiv(my)
	}
	if err != nil {
		// Shape mismatches yield Matrix(Error), not a raised error (spec §4.5).
		return value.Obj{O: value.NewError("matrix", err.Error())}, nil
	}
	return value.Obj{O: value.NewMatrix(res)}, nil
}

type uerrPos = uerr.Pos

func compare(op ast.BinOp, x, y value.Value) (value.Value, error) {
	xf, xok := toFloat(x)
	yf, yok := toFloat(y)
	if xok && yok {
		return value.Bool(cmpFloat(op, float64(xf), float64(yf))), nil
	}
	xs, xIsStr := asString(x)
	ys, yIsStr := asString(y)
	if xIsStr && yIsStr {
		return value.Bool(cmpString(op, xs, ys)), nil
	}
	if op == ast.CmpEq {
		return value.Bool(false), nil
	}
	if op == ast.CmpNe {
		return value.Bool(true), nil
	}
	return nil, errType("values are not comparable")
}

func asString(v value.Value) (string, bool) {
	if obj, ok := v.(value.Obj); ok {
		if s, ok := obj.O.(*value.String); ok {
			return s.S, true
		}
	}
	return "", false
}

func cmpFloat(op ast.BinOp, x, y float64) bool {
	switch op {
	case ast.CmpLt:
		return x < y
	case ast.CmpLe:
		return x <= y
	case ast.CmpGt:
		return x > y
	case ast.CmpGe:
		return x >= y
	case ast.CmpEq:
		return x == y
	case ast.CmpNe:
		return x != y
	}
	return false
}

func cmpString(op ast.BinOp, x, y string) bool {
	switch op {
	case ast.CmpLt:
		return x < y
	case ast.CmpLe:
		return x <= y
	case ast.CmpGt:
		return x > y
	case ast.CmpGe:
		return x >= y
	case ast.CmpEq:
		return x == y
	case ast.CmpNe:
		return x != y
	}
	return false
}

// evalLogic short-circuits: the right operand is evaluated only when
// needed; the result is the right operand's value if reached, else a Bool
// (spec §4.5).
func (it *Interp) evalLogic(n *ast.Logic) (value.Value, error) {
	x, err := it.evalExpr(n.X)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.LAnd:
		if !truthy(x) {
			return value.Bool(false), nil
		}
		return it.evalExpr(n.Y)
	case ast.LOr:
		if truthy(x) {
			return value.Bool(true), nil
		}
		return it.evalExpr(n.Y)
	}
	return nil, errType("unsupported logic operator")
}

func (it *Interp) evalRange(n *ast.Range) (value.Value, error) {
	from, err := it.evalExpr(n.From)
	if err != nil {
		return nil, err
	}
	to, err := it.evalExpr(n.To)
	if err != nil {
		return nil, err
	}
	var by value.Value = value.Int(1)
	if n.By != nil {
		by, err = it.evalExpr(n.By)
		if err != nil {
			return nil, err
		}
	}
	fi, fIsInt := from.(value.Int)
	ti, tIsInt := to.(value.Int)
	bi, bIsInt := by.(value.Int)
	if fIsInt && tIsInt && (n.By == nil || bIsInt) {
		if bIsInt == false {
			bi = 1
		}
		if bi == 0 {
			return nil, uerr.InterpAt(n.Pos.Uerr(), "range step must not be zero")
		}
		r, ok := value.NewIntRange(int64(fi), int64(ti), int64(bi))
		if !ok {
			return nil, uerr.InterpAt(n.Pos.Uerr(), "range step must not be zero")
		}
		return value.Obj{O: r}, nil
	}
	ff, fOk := toFloat(from)
	tf, tOk := toFloat(to)
	bf, bOk := toFloat(by)
	if !fOk || !tOk {
		return nil, uerr.InterpAt(n.Pos.Uerr(), "range endpoints must both be Int or both be Float")
	}
	if n.By != nil && !bOk {
		return nil, uerr.InterpAt(n.Pos.Uerr(), "range step must match endpoint type")
	}
	if !bOk {
		bf = 1
	}
	if bf == 0 {
		return nil, uerr.InterpAt(n.Pos.Uerr(), "range step must not be zero")
	}
	r, ok := value.NewFloatRange(ff, tf, bf)
	if !ok {
		return nil, uerr.InterpAt(n.Pos.Uerr(), "range step must not be zero")
	}
	return value.Obj{O: r}, nil
}

func (it *Interp) evalFieldAccess(n *ast.FieldAccess) (value.Value, error) {
	x, err := it.evalExpr(n.X)
	if err != nil {
		return nil, err
	}
	if ref, ok := x.(value.Ref); ok {
		if s, ok := ref.M.(*value.Struct); ok {
			if v, ok := s.Get(n.Field); ok {
				return v, nil
			}
			return nil, uerr.InterpAt(n.Pos.Uerr(), "no such field: "+n.Field)
		}
	}
	if obj, ok := x.(value.Obj); ok {
		if errObj, ok := obj.O.(*value.ErrorObj); ok {
			switch n.Field {
			case "kind":
				return value.Obj{O: value.NewString(errObj.EKind)}, nil
			case "msg":
				return value.Obj{O: value.NewString(errObj.Msg)}, nil
			}
		}
	}
	return nil, uerr.InterpAt(n.Pos.Uerr(), "value has no field: "+n.Field)
}

func (it *Interp) evalIndex(n *ast.Index) (value.Value, error) {
	x, err := it.evalExpr(n.X)
	if err != nil {
		return nil, err
	}
	idxs := make([]int, 0, len(n.Indices))
	for _, ie := range n.Indices {
		v, err := it.evalExpr(ie)
		if err != nil {
			return nil, err
		}
		iv, ok := v.(value.Int)
		if !ok {
			return nil, uerr.InterpAt(n.Pos.Uerr(), "index must be an integer")
		}
		idxs = append(idxs, int(iv))
	}
	switch xv := x.(type) {
	case value.Ref:
		if arr, ok := xv.M.(*value.Array); ok {
			if len(idxs) != 1 || idxs[0] < 0 || idxs[0] >= len(arr.Elems) {
				return nil, uerr.InterpAt(n.Pos.Uerr(), "index out of range")
			}
			return arr.Elems[idxs[0]], nil
		}
	case value.Obj:
		if ma, ok := xv.O.(*value.MatrixArray); ok {
			if len(idxs) == 2 {
				r, c := idxs[0], idxs[1]
				if r < 0 || r >= ma.Rows || c < 0 || c >= ma.Cols {
					return nil, uerr.InterpAt(n.Pos.Uerr(), "index out of range")
				}
				return value.Float(ma.At(r, c)), nil
			}
			if len(idxs) == 1 {
				rs, ok := value.NewMatrixRowSlice(ma, idxs[0])
				if !ok {
					return nil, uerr.InterpAt(n.Pos.Uerr(), "index out of range")
				}
				return value.Obj{O: rs}, nil
			}
		}
	}
	return nil, uerr.InterpAt(n.Pos.Uerr(), "value is not indexable")
}

func (it *Interp) evalStructLit(n *ast.StructLit) (value.Value, error) {
	s := value.NewStruct()
	for _, f := range n.Fields {
		v, err := it.evalExpr(f.Value)
		if err != nil {
			return nil, err
		}
		s.Set(f.Ident, v)
	}
	return value.Ref{M: s}, nil
}

// ---- Matrix/array literal evaluation (spec §4.5: row-major order, "fill"
// rows replicate their single expression and re-run side effects once per
// replica; a trailing whole-literal fill repeats the entire row stack). ----

func (it *Interp) evalMatrixRows(rows []ast.Row, fillAll, fillCount ast.Expr) ([][]float32, int, error) {
	var out [][]float32
	cols := -1
	appendRow := func(r []float32) error {
		if cols == -1 {
			cols = len(r)
		} else if len(r) != cols {
			return errType("matrix rows must have equal column counts")
		}
		out = append(out, r)
		return nil
	}
	for _, row := range rows {
		if row.Fill != nil {
			cv, err := it.evalExpr(row.Count)
			if err != nil {
				return nil, 0, err
			}
			n, ok := cv.(value.Int)
			if !ok {
				return nil, 0, errType("fill count must be an integer")
			}
			rvals := make([]float32, 0, n)
			for i := int64(0); i < int64(n); i++ {
				v, err := it.evalExpr(row.Fill)
				if err != nil {
					return nil, 0, err
				}
				f, ok := toFloat(v)
				if !ok {
					return nil, 0, errType("matrix elements must be numbers")
				}
				rvals = append(rvals, f)
			}
			if err := appendRow(rvals); err != nil {
				return nil, 0, err
			}
			continue
		}
		rvals := make([]float32, 0, len(row.Exprs))
		for _, e := range row.Exprs {
			v, err := it.evalExpr(e)
			if err != nil {
				return nil, 0, err
			}
			f, ok := toFloat(v)
			if !ok {
				return nil, 0, errType("matrix elements must be numbers")
			}
			rvals = append(rvals, f)
		}
		if err := appendRow(rvals); err != nil {
			return nil, 0, err
		}
	}
	if fillAll != nil {
		cv, err := it.evalExpr(fillCount)
		if err != nil {
			return nil, 0, err
		}
		n, ok := cv.(value.Int)
		if !ok {
			return nil, 0, errType("fill count must be an integer")
		}
		base := out
		for i := int64(1); i < int64(n); i++ {
			out = append(out, base...)
		}
	}
	if cols == -1 {
		cols = 0
	}
	return out, cols, nil
}

func (it *Interp) evalMatrixLit(n *ast.MatrixLit) (value.Value, error) {
	rows, cols, err := it.evalMatrixRows(n.Rows, n.FillAll, n.FillCount)
	if err != nil {
		return nil, uerr.InterpAt(n.Pos.Uerr(), err.Error())
	}
	data := make([]float32, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	ma, ok := value.NewMatrixArray(len(rows), cols, false, data)
	if !ok {
		return nil, uerr.InterpAt(n.Pos.Uerr(), "inconsistent matrix shape")
	}
	return value.Obj{O: ma}, nil
}

func (it *Interp) evalArrayLit(n *ast.ArrayLit) (value.Value, error) {
	var elems []value.Value
	for _, row := range n.Rows {
		if row.Fill != nil {
			cv, err := it.evalExpr(row.Count)
			if err != nil {
				return nil, err
			}
			cnt, ok := cv.(value.Int)
			if !ok {
				return nil, uerr.InterpAt(n.Pos.Uerr(), "fill count must be an integer")
			}
			for i := int64(0); i < int64(cnt); i++ {
				v, err := it.evalExpr(row.Fill)
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
			}
			continue
		}
		for _, e := range row.Exprs {
			v, err := it.evalExpr(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
	}
	if n.FillAll != nil {
		cv, err := it.evalExpr(n.FillCount)
		if err != nil {
			return nil, err
		}
		cnt, ok := cv.(value.Int)
		if !ok {
			return nil, uerr.InterpAt(n.Pos.Uerr(), "fill count must be an integer")
		}
		base := append([]value.Value(nil), elems...)
		for i := int64(1); i < int64(cnt); i++ {
			elems = append(elems, base...)
		}
	}
	return value.Ref{M: value.NewArray(elems)}, nil
}

// evalCall applies a Fun or BuiltinFun value (spec §4.5).
func (it *Interp) evalCall(n *ast.Call) (value.Value, error) {
	fv, err := it.evalExpr(n.Fun)
	if err != nil {
		return nil, err
	}
	args := make([]value.Value, 0, len(n.Args))
	for _, ae := range n.Args {
		v, err := it.evalExpr(ae)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	obj, ok := fv.(value.Obj)
	if !ok {
		return nil, uerr.InterpAt(n.Pos.Uerr(), "value is not callable")
	}
	switch f := obj.O.(type) {
	case *value.Fun:
		return it.applyFun(n.Pos, f, args)
	case *value.BuiltinFun:
		v, err := f.Fn(args)
		if err != nil {
			return nil, uerr.InterpAt(n.Pos.Uerr(), err.Error())
		}
		return v, nil
	default:
		return nil, uerr.InterpAt(n.Pos.Uerr(), "value is not callable")
	}
}

func (it *Interp) applyFun(pos uerrPosToken, f *value.Fun, args []value.Value) (value.Value, error) {
	ok, noFunMod := it.Env.PushFunModAndLocalVars(f.ModPath, f.Args, args)
	if noFunMod {
		return nil, uerr.ErrNoFunMod
	}
	if !ok {
		return nil, uerr.InterpAt(pos.Uerr(), "argument count mismatch")
	}
	prevFun := it.curFun
	it.curFun = f
	defer func() {
		it.Env.PopFunModAndLocalVars()
		it.curFun = prevFun
	}()

	v, err := it.execBody(f.Body)
	if err != nil {
		if s, isStop := uerr.AsStop(err); isStop {
			switch s.Kind {
			case uerr.StopReturn:
				return it.returnValue, nil
			case uerr.StopErrorPropagation:
				return it.returnValue, nil
			}
			return nil, err // Break/Continue/Quit/Exit propagate past the call
		}
		it.pushTrace(pos)
		return nil, err
	}
	return v, nil
}

type uerrPosToken = interface{ Uerr() uerr.Pos }
