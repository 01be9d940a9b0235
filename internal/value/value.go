// Package value implements the tagged-union Value data model of spec §3:
// None/Bool/Int/Float scalars, immutable Objects (shared, reference-counted
// implicitly by the Go garbage collector), and mutable Refs/Weaks over
// MutObjects (Array, Struct).
package value

import (
	"bufio"
	"io"
	"sync/atomic"

	"github.com/luckboy/unlab-gpu/internal/ast"
	"github.com/luckboy/unlab-gpu/internal/backend"
)

// Value is the tagged union of every runtime value.
type Value interface {
	isValue()
}

type None struct{}

func (None) isValue() {}

type Bool bool

func (Bool) isValue() {}

type Int int64

func (Int) isValue() {}

type Float float32

func (Float) isValue() {}

// Obj wraps a shared, immutable Object.
type Obj struct{ O Object }

func (Obj) isValue() {}

// Ref is a strong reference to a mutable object.
type Ref struct{ M MutObject }

func (Ref) isValue() {}

// Weak is a non-owning reference to a mutable object. Upgrade succeeds
// unless the Weak was constructed as already-dead (the codec's "dead weak"
// wire tag, spec §4.6, §8 scenario 8): Go's garbage collector keeps the
// pointed-to MutObject alive for as long as any Value (strong or weak)
// reaches it, so "dead" here models the source language's Arc/Weak
// liveness explicitly rather than relying on finalizers (see DESIGN.md).
type Weak struct {
	M    MutObject
	Dead bool
}

func (Weak) isValue() {}

// Upgrade returns a strong Ref to the weakly-held object, or ok=false if the
// weak reference was already dead.
func (w Weak) Upgrade() (Ref, bool) {
	if w.Dead || w.M == nil {
		return Ref{}, false
	}
	return Ref{M: w.M}, true
}

// ---- Immutable Object variants ----

// Object is the marker interface for immutable object payloads.
type Object interface {
	isObject()
	// ID is a process-unique identity used by the codec's back-reference
	// map; two Objects with the same ID are the same shared instance.
	ID() uint64
}

var nextID uint64

func freshID() uint64 { return atomic.AddUint64(&nextID, 1) }

type idBase struct{ id uint64 }

func newIDBase() idBase { return idBase{id: freshID()} }
func (b idBase) ID() uint64 { return b.id }

type String struct {
	idBase
	S string
}

func NewString(s string) *String { return &String{idBase: newIDBase(), S: s} }
func (*String) isObject()        {}

type IntRange struct {
	idBase
	Start, End, Step int64
}

// NewIntRange validates step != 0 (spec §3 invariant 2).
func NewIntRange(start, end, step int64) (*IntRange, bool) {
	if step == 0 {
		return nil, false
	}
	return &IntRange{idBase: newIDBase(), Start: start, End: end, Step: step}, true
}
func (*IntRange) isObject() {}

type FloatRange struct {
	idBase
	Start, End, Step float32
}

func NewFloatRange(start, end, step float32) (*FloatRange, bool) {
	if step == 0 {
		return nil, false
	}
	return &FloatRange{idBase: newIDBase(), Start: start, End: end, Step: step}, true
}
func (*FloatRange) isObject() {}

// Matrix is a matrix-view value over a MatrixBackend (spec's "Matrix-view").
type Matrix struct {
	idBase
	B backend.MatrixBackend
}

func NewMatrix(b backend.MatrixBackend) *Matrix { return &Matrix{idBase: newIDBase(), B: b} }
func (*Matrix) isObject()                       {}

// MatrixArray is the owning, row-major f32 storage plus shape/transpose
// flag (spec §3 invariant 1: len(Data) == Rows*Cols).
type MatrixArray struct {
	idBase
	Rows, Cols int
	Transposed bool
	Data       []float32
}

func NewMatrixArray(rows, cols int, transposed bool, data []float32) (*MatrixArray, bool) {
	if len(data) != rows*cols {
		return nil, false
	}
	return &MatrixArray{idBase: newIDBase(), Rows: rows, Cols: cols, Transposed: transposed, Data: data}, true
}
func (*MatrixArray) isObject() {}

func (m *MatrixArray) At(row, col int) float32 {
	r, c := row, col
	if m.Transposed {
		r, c = col, row
	}
	return m.Data[r*m.Cols+c]
}

// MatrixRowSlice is a view of one row of a parent MatrixArray (spec §3
// invariant 1: RowIndex < parent.Rows).
type MatrixRowSlice struct {
	idBase
	Parent   *MatrixArray
	RowIndex int
}

func NewMatrixRowSlice(parent *MatrixArray, rowIndex int) (*MatrixRowSlice, bool) {
	if rowIndex < 0 || rowIndex >= parent.Rows {
		return nil, false
	}
	return &MatrixRowSlice{idBase: newIDBase(), Parent: parent, RowIndex: rowIndex}, true
}
func (*MatrixRowSlice) isObject() {}

// ErrorObj is the runtime's Error(kind, msg) object, round-tripped
// bit-identical through the codec (spec §3 invariant 3).
type ErrorObj struct {
	idBase
	EKind string
	Msg   string
}

func NewError(kind, msg string) *ErrorObj { return &ErrorObj{idBase: newIDBase(), EKind: kind, Msg: msg} }
func (*ErrorObj) isObject()               {}

// Fun is a script-defined function value: a module path + name + body AST.
type Fun struct {
	idBase
	ModPath []string
	Name    string
	Args    []string
	Body    []ast.Node
}

func NewFun(modPath []string, name string, args []string, body []ast.Node) *Fun {
	return &Fun{idBase: newIDBase(), ModPath: modPath, Name: name, Args: args, Body: body}
}
func (*Fun) isObject() {}

// BuiltinFun is a named builtin dispatching to a Go function. The function
// pointer itself is resolved by name on codec decode (spec §4.6), never
// serialized.
type BuiltinFun struct {
	idBase
	Name string
	Fn   BuiltinFn
}

// BuiltinFn is the call-site interface every builtin implements (spec §9:
// "duck-typed functions at runtime").
type BuiltinFn func(args []Value) (Value, error)

func NewBuiltinFun(name string, fn BuiltinFn) *BuiltinFun {
	return &BuiltinFun{idBase: newIDBase(), Name: name, Fn: fn}
}
func (*BuiltinFun) isObject() {}

// ---- Mutable MutObject variants ----

type MutObject interface {
	isMutObject()
	ID() uint64
}

type Array struct {
	idBase
	Elems []Value
}

func NewArray(elems []Value) *Array { return &Array{idBase: newIDBase(), Elems: elems} }
func (*Array) isMutObject()         {}

// Struct is an ordered ident->Value map (spec §3).
type Struct struct {
	idBase
	Keys   []string
	Values map[string]Value
}

func NewStruct() *Struct {
	return &Struct{idBase: newIDBase(), Values: make(map[string]Value)}
}
func (*Struct) isMutObject() {}

func (s *Struct) Set(key string, v Value) {
	if _, ok := s.Values[key]; !ok {
		s.Keys = append(s.Keys, key)
	}
	s.Values[key] = v
}

func (s *Struct) Get(key string) (Value, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// File wraps an open file handle as a mutable object (spec §3.1's `open`/
// `close` builtins): its identity is the handle, not its contents, so it
// follows the Array/Struct convention of living behind a Ref rather than an
// Obj. Reader/Writer are nil once Closed, so double-close and use-after-
// close are detectable without relying on the underlying *os.File's own
// error behavior.
type File struct {
	idBase
	Reader *bufio.Reader
	Writer io.Writer
	Closer io.Closer
	Path   string
	Closed bool
}

func NewFile(path string, r *bufio.Reader, w io.Writer, c io.Closer) *File {
	return &File{idBase: newIDBase(), Reader: r, Writer: w, Closer: c, Path: path}
}
func (*File) isMutObject() {}

// TypeName returns a short identifier for error messages and the `?`
// operator's dispatch, mirroring the names used by the doc-tree generator.
func TypeName(v Value) string {
	switch v.(type) {
	case None:
		return "none"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Ref:
		return "ref"
	case Weak:
		return "weak"
	case Obj:
		o := v.(Obj).O
		switch o.(type) {
		case *String:
			return "string"
		case *IntRange, *FloatRange:
			return "range"
		case *Matrix, *MatrixArray, *MatrixRowSlice:
			return "matrix"
		case *ErrorObj:
			return "error"
		case *Fun, *BuiltinFun:
			return "function"
		}
	}
	return "unknown"
}
