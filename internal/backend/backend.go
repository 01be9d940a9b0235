// Package backend declares the MatrixBackend capability the interpreter's
// value layer delegates shaped numeric operations to. The real GPU
// (OpenCL/CUDA) kernels are out of scope (spec §1); only value-level
// semantics (shape, transpose flag, element type) live here, backed by a
// plain CPU implementation that satisfies the interface for tests and for
// any build without a GPU backend configured.
package backend

import "fmt"

// MatrixBackend is the black-box numeric capability matrices delegate to.
type MatrixBackend interface {
	Rows() int
	Cols() int
	Transposed() bool
	// At returns the element at the given *logical* (transpose-aware) row/col.
	At(row, col int) float32
	Data() []float32 // physical, row-major, untransposed storage

	Transpose() MatrixBackend
	Add(other MatrixBackend) (MatrixBackend, error)
	Sub(other MatrixBackend) (MatrixBackend, error)
	Mul(other MatrixBackend) (MatrixBackend, error)
	ElemMul(other MatrixBackend) (MatrixBackend, error)
	ElemDiv(other MatrixBackend) (MatrixBackend, error)
}

// ErrShapeMismatch is wrapped into a Matrix(Error) value by the interpreter
// when a shape-dependent op fails (spec §4.5).
type ErrShapeMismatch struct {
	Op                 string
	RowsA, ColsA       int
	RowsB, ColsB       int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("%s: shape mismatch (%dx%d vs %dx%d)", e.Op, e.RowsA, e.ColsA, e.RowsB, e.ColsB)
}

// CPU is the default, always-available MatrixBackend: a flat row-major
// []float32 plus a transpose flag, exactly mirroring the wire/value shape
// described in spec §3's MatrixArray.
type CPU struct {
	rows, cols int
	transposed bool
	data       []float32 // always physically row-major, untransposed
}

// New constructs a CPU matrix from row-major data (rows*cols == len(data)).
func New(rows, cols int, data []float32) *CPU {
	return &CPU{rows: rows, cols: cols, data: data}
}

func (m *CPU) Rows() int {
	if m.transposed {
		return m.cols
	}
	return m.rows
}

func (m *CPU) Cols() int {
	if m.transposed {
		return m.rows
	}
	return m.cols
}

func (m *CPU) Transposed() bool { return m.transposed }
func (m *CPU) Data() []float32  { return m.data }

func (m *CPU) At(row, col int) float32 {
	if m.transposed {
		row, col = col, row
	}
	return m.data[row*m.cols+col]
}

func (m *CPU) Transpose() MatrixBackend {
	return &CPU{rows: m.rows, cols: m.cols, transposed: !m.transposed, data: m.data}
}

// Materialize returns an untransposed physical copy, used by the value
// codec which always serializes matrices in untransposed row-major form
// (spec §4.6).
func (m *CPU) Materialize() *CPU {
	if !m.transposed {
		return &CPU{rows: m.rows, cols: m.cols, data: m.data}
	}
	out := make([]float32, len(m.data))
	r, c := m.Rows(), m.Cols()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i*c+j] = m.At(i, j)
		}
	}
	return &CPU{rows: r, cols: c, data: out}
}

func (m *CPU) elementwise(other MatrixBackend, op string, f func(a, b float32) float32) (MatrixBackend, error) {
	o, ok := other.(*CPU)
	if !ok {
		o = other.(*CPU)
	}
	if m.Rows() != o.Rows() || m.Cols() != o.Cols() {
		return nil, &ErrShapeMismatch{Op: op, RowsA: m.Rows(), ColsA: m.Cols(), RowsB: o.Rows(), ColsB: o.Cols()}
	}
	r, c := m.Rows(), m.Cols()
	out := make([]float32, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i*c+j] = f(m.At(i, j), o.At(i, j))
		}
	}
	return &CPU{rows: r, cols: c, data: out}, nil
}

func (m *CPU) Add(other MatrixBackend) (MatrixBackend, error) {
	return m.elementwise(other, "add", func(a, b float32) float32 { return a + b })
}

func (m *CPU) Sub(other MatrixBackend) (MatrixBackend, error) {
	return m.elementwise(other, "sub", func(a, b float32) float32 { return a - b })
}

func (m *CPU) ElemMul(other MatrixBackend) (MatrixBackend, error) {
	return m.elementwise(other, "elemwise multiply", func(a, b float32) float32 { return a * b })
}

func (m *CPU) ElemDiv(other MatrixBackend) (MatrixBackend, error) {
	return m.elementwise(other, "elemwise divide", func(a, b float32) float32 { return a / b })
}

func (m *CPU) Mul(other MatrixBackend) (MatrixBackend, error) {
	o := other.(*CPU)
	if m.Cols() != o.Rows() {
		return nil, &ErrShapeMismatch{Op: "multiply", RowsA: m.Rows(), ColsA: m.Cols(), RowsB: o.Rows(), ColsB: o.Cols()}
	}
	r, k, c := m.Rows(), m.Cols(), o.Cols()
	out := make([]float32, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			var sum float32
			for x := 0; x < k; x++ {
				sum += m.At(i, x) * o.At(x, j)
			}
			out[i*c+j] = sum
		}
	}
	return &CPU{rows: r, cols: c, data: out}, nil
}
