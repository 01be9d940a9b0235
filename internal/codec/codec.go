// Package codec implements the binary value codec (spec §4.6, §8): writing
// and reading slices of Values while preserving object identity (repeated
// Refs/Objs to the same instance decode to the same pointer), reference
// cycles among mutable objects, and weak-reference liveness (a Weak whose
// target is not transitively strong-reachable from the written roots
// decodes as dead, mirroring Arc/Weak semantics).
//
// Grounded on original_source/src/io/tests.rs's write_values/read_values
// round-trip contract.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/luckboy/unlab-gpu/internal/backend"
	"github.com/luckboy/unlab-gpu/internal/value"
)

const (
	tagNone byte = iota
	tagBoolFalse
	tagBoolTrue
	tagInt
	tagFloat
	tagObjNew
	tagObjRef
	tagMutNew
	tagMutRef
	tagWeakAlive
	tagWeakDead
)

const (
	okString byte = iota
	okIntRange
	okFloatRange
	okMatrix
	okMatrixArray
	okMatrixRowSlice
	okError
	okFun
	okBuiltinFun
)

const (
	mkArray byte = iota
	mkStruct
)

// WriteValues encodes values to w in order.
func WriteValues(w io.Writer, values []value.Value) error {
	e := &encoder{
		w:        w,
		objSeen:  make(map[uint64]bool),
		mutSeen:  make(map[uint64]bool),
		liveMuts: liveMutIDs(values),
	}
	if err := writeU64(w, uint64(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := e.writeValue(v); err != nil {
			return err
		}
	}
	return nil
}

// ReadValues decodes a slice of Values previously written by WriteValues.
// builtins resolves BuiltinFun objects by name (spec §4.6: builtin function
// pointers are never serialized, only looked up by name on decode).
func ReadValues(r io.Reader, builtins map[string]*value.BuiltinFun) ([]value.Value, error) {
	d := &decoder{
		r:        r,
		objs:     make(map[uint64]value.Object),
		muts:     make(map[uint64]value.MutObject),
		builtins: builtins,
	}
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, n)
	for i := range out {
		v, err := d.readValue()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ---- liveness pre-pass ----

// liveMutIDs walks the strong (Ref/Obj) spanning graph reachable from
// values, recording every MutObject id seen. A Weak target absent from this
// set has no surviving strong owner and decodes as dead.
func liveMutIDs(values []value.Value) map[uint64]bool {
	live := make(map[uint64]bool)
	var walk func(v value.Value)
	walk = func(v value.Value) {
		switch t := v.(type) {
		case value.Ref:
			if t.M == nil || live[t.M.ID()] {
				return
			}
			live[t.M.ID()] = true
			switch m := t.M.(type) {
			case *value.Array:
				for _, e := range m.Elems {
					walk(e)
				}
			case *value.Struct:
				for _, k := range m.Keys {
					walk(m.Values[k])
				}
			}
		}
	}
	for _, v := range values {
		walk(v)
	}
	return live
}

// ---- encoder ----

type encoder struct {
	w        io.Writer
	objSeen  map[uint64]bool
	mutSeen  map[uint64]bool
	liveMuts map[uint64]bool
}

func (e *encoder) writeValue(v value.Value) error {
	switch t := v.(type) {
	case value.None:
		return writeByte(e.w, tagNone)
	case value.Bool:
		if t {
			return writeByte(e.w, tagBoolTrue)
		}
		return writeByte(e.w, tagBoolFalse)
	case value.Int:
		if err := writeByte(e.w, tagInt); err != nil {
			return err
		}
		return writeU64(e.w, uint64(t))
	case value.Float:
		if err := writeByte(e.w, tagFloat); err != nil {
			return err
		}
		return writeU32(e.w, math.Float32bits(float32(t)))
	case value.Obj:
		return e.writeObject(t.O)
	case value.Ref:
		return e.writeMut(t.M)
	case value.Weak:
		if t.M == nil || t.Dead || !e.liveMuts[t.M.ID()] {
			return writeByte(e.w, tagWeakDead)
		}
		if err := writeByte(e.w, tagWeakAlive); err != nil {
			return err
		}
		return e.writeMut(t.M)
	default:
		return fmt.Errorf("codec: unknown value type %T", v)
	}
}

func (e *encoder) writeObject(o value.Object) error {
	if e.objSeen[o.ID()] {
		if err := writeByte(e.w, tagObjRef); err != nil {
			return err
		}
		return writeU64(e.w, o.ID())
	}
	e.objSeen[o.ID()] = true
	if err := writeByte(e.w, tagObjNew); err != nil {
		return err
	}
	if err := writeU64(e.w, o.ID()); err != nil {
		return err
	}
	switch x := o.(type) {
	case *value.String:
		if err := writeByte(e.w, okString); err != nil {
			return err
		}
		return writeString(e.w, x.S)
	case *value.IntRange:
		if err := writeByte(e.w, okIntRange); err != nil {
			return err
		}
		if err := writeI64(e.w, x.Start); err != nil {
			return err
		}
		if err := writeI64(e.w, x.End); err != nil {
			return err
		}
		return writeI64(e.w, x.Step)
	case *value.FloatRange:
		if err := writeByte(e.w, okFloatRange); err != nil {
			return err
		}
		if err := writeU32(e.w, math.Float32bits(x.Start)); err != nil {
			return err
		}
		if err := writeU32(e.w, math.Float32bits(x.End)); err != nil {
			return err
		}
		return writeU32(e.w, math.Float32bits(x.Step))
	case *value.Matrix:
		if err := writeByte(e.w, okMatrix); err != nil {
			return err
		}
		return e.writeMatrixData(x.B)
	case *value.MatrixArray:
		if err := writeByte(e.w, okMatrixArray); err != nil {
			return err
		}
		return e.writeMatrixArrayFields(x)
	case *value.MatrixRowSlice:
		if err := writeByte(e.w, okMatrixRowSlice); err != nil {
			return err
		}
		if err := e.writeObject(x.Parent); err != nil {
			return err
		}
		return writeU64(e.w, uint64(x.RowIndex))
	case *value.ErrorObj:
		if err := writeByte(e.w, okError); err != nil {
			return err
		}
		if err := writeString(e.w, x.EKind); err != nil {
			return err
		}
		return writeString(e.w, x.Msg)
	case *value.Fun:
		if err := writeByte(e.w, okFun); err != nil {
			return err
		}
		if err := writeStrings(e.w, x.ModPath); err != nil {
			return err
		}
		if err := writeString(e.w, x.Name); err != nil {
			return err
		}
		if err := writeStrings(e.w, x.Args); err != nil {
			return err
		}
		body, err := encodeBody(x.Body)
		if err != nil {
			return err
		}
		return writeBytes(e.w, body)
	case *value.BuiltinFun:
		if err := writeByte(e.w, okBuiltinFun); err != nil {
			return err
		}
		return writeString(e.w, x.Name)
	default:
		return fmt.Errorf("codec: unknown object type %T", o)
	}
}

func (e *encoder) writeMatrixData(b backend.MatrixBackend) error {
	if cpu, ok := b.(*backend.CPU); ok {
		b = cpu.Materialize()
	}
	data := b.Data()
	physRows, physCols := b.Rows(), b.Cols()
	if b.Transposed() {
		physRows, physCols = physCols, physRows
	}
	if err := writeU64(e.w, uint64(physRows)); err != nil {
		return err
	}
	if err := writeU64(e.w, uint64(physCols)); err != nil {
		return err
	}
	if err := writeBool(e.w, b.Transposed()); err != nil {
		return err
	}
	return writeFloats(e.w, data)
}

func (e *encoder) writeMatrixArrayFields(m *value.MatrixArray) error {
	if err := writeU64(e.w, uint64(m.Rows)); err != nil {
		return err
	}
	if err := writeU64(e.w, uint64(m.Cols)); err != nil {
		return err
	}
	if err := writeBool(e.w, m.Transposed); err != nil {
		return err
	}
	return writeFloats(e.w, m.Data)
}

func (e *encoder) writeMut(m value.MutObject) error {
	if e.mutSeen[m.ID()] {
		if err := writeByte(e.w, tagMutRef); err != nil {
			return err
		}
		return writeU64(e.w, m.ID())
	}
	e.mutSeen[m.ID()] = true
	if err := writeByte(e.w, tagMutNew); err != nil {
		return err
	}
	if err := writeU64(e.w, m.ID()); err != nil {
		return err
	}
	switch x := m.(type) {
	case *value.Array:
		if err := writeByte(e.w, mkArray); err != nil {
			return err
		}
		if err := writeU64(e.w, uint64(len(x.Elems))); err != nil {
			return err
		}
		for _, el := range x.Elems {
			if err := e.writeValue(el); err != nil {
				return err
			}
		}
		return nil
	case *value.Struct:
		if err := writeByte(e.w, mkStruct); err != nil {
			return err
		}
		if err := writeU64(e.w, uint64(len(x.Keys))); err != nil {
			return err
		}
		for _, k := range x.Keys {
			if err := writeString(e.w, k); err != nil {
				return err
			}
			if err := e.writeValue(x.Values[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("codec: unknown mutable object type %T", m)
	}
}

// ---- decoder ----

type decoder struct {
	r        io.Reader
	objs     map[uint64]value.Object
	muts     map[uint64]value.MutObject
	builtins map[string]*value.BuiltinFun
}

func (d *decoder) readValue() (value.Value, error) {
	tag, err := readByte(d.r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNone:
		return value.None{}, nil
	case tagBoolFalse:
		return value.Bool(false), nil
	case tagBoolTrue:
		return value.Bool(true), nil
	case tagInt:
		u, err := readU64(d.r)
		if err != nil {
			return nil, err
		}
		return value.Int(int64(u)), nil
	case tagFloat:
		u, err := readU32(d.r)
		if err != nil {
			return nil, err
		}
		return value.Float(math.Float32frombits(u)), nil
	case tagObjNew:
		o, err := d.readObjectNew()
		if err != nil {
			return nil, err
		}
		return value.Obj{O: o}, nil
	case tagObjRef:
		id, err := readU64(d.r)
		if err != nil {
			return nil, err
		}
		o, ok := d.objs[id]
		if !ok {
			return nil, fmt.Errorf("codec: dangling object back-reference %d", id)
		}
		return value.Obj{O: o}, nil
	case tagMutNew:
		m, err := d.readMutNew()
		if err != nil {
			return nil, err
		}
		return value.Ref{M: m}, nil
	case tagMutRef:
		id, err := readU64(d.r)
		if err != nil {
			return nil, err
		}
		m, ok := d.muts[id]
		if !ok {
			return nil, fmt.Errorf("codec: dangling mutable back-reference %d", id)
		}
		return value.Ref{M: m}, nil
	case tagWeakAlive:
		inner, err := d.readValue()
		if err != nil {
			return nil, err
		}
		ref, ok := inner.(value.Ref)
		if !ok {
			return nil, fmt.Errorf("codec: weak payload was not a mutable reference")
		}
		return value.Weak{M: ref.M}, nil
	case tagWeakDead:
		return value.Weak{Dead: true}, nil
	default:
		return nil, fmt.Errorf("codec: unknown value tag %d", tag)
	}
}

func (d *decoder) readObjectNew() (value.Object, error) {
	id, err := readU64(d.r)
	if err != nil {
		return nil, err
	}
	kind, err := readByte(d.r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case okString:
		s, err := readString(d.r)
		if err != nil {
			return nil, err
		}
		o := value.NewString(s)
		d.objs[id] = o
		return o, nil
	case okIntRange:
		start, err := readI64(d.r)
		if err != nil {
			return nil, err
		}
		end, err := readI64(d.r)
		if err != nil {
			return nil, err
		}
		step, err := readI64(d.r)
		if err != nil {
			return nil, err
		}
		o, ok := value.NewIntRange(start, end, step)
		if !ok {
			return nil, fmt.Errorf("codec: invalid int range")
		}
		d.objs[id] = o
		return o, nil
	case okFloatRange:
		start, err := readF32(d.r)
		if err != nil {
			return nil, err
		}
		end, err := readF32(d.r)
		if err != nil {
			return nil, err
		}
		step, err := readF32(d.r)
		if err != nil {
			return nil, err
		}
		o, ok := value.NewFloatRange(start, end, step)
		if !ok {
			return nil, fmt.Errorf("codec: invalid float range")
		}
		d.objs[id] = o
		return o, nil
	case okMatrix:
		rows, cols, data, transposed, err := d.readMatrixData()
		if err != nil {
			return nil, err
		}
		b := backend.MatrixBackend(backend.New(rows, cols, data))
		if transposed {
			b = b.Transpose()
		}
		o := value.NewMatrix(b)
		d.objs[id] = o
		return o, nil
	case okMatrixArray:
		rows, cols, transposed, data, err := d.readMatrixArrayFields()
		if err != nil {
			return nil, err
		}
		o, ok := value.NewMatrixArray(rows, cols, transposed, data)
		if !ok {
			return nil, fmt.Errorf("codec: invalid matrix array")
		}
		d.objs[id] = o
		return o, nil
	case okMatrixRowSlice:
		parentV, err := d.readValue()
		if err != nil {
			return nil, err
		}
		parentObj, ok := parentV.(value.Obj)
		if !ok {
			return nil, fmt.Errorf("codec: matrix row slice parent was not an object")
		}
		parent, ok := parentObj.O.(*value.MatrixArray)
		if !ok {
			return nil, fmt.Errorf("codec: matrix row slice parent was not a matrix array")
		}
		rowIdx, err := readU64(d.r)
		if err != nil {
			return nil, err
		}
		o, ok := value.NewMatrixRowSlice(parent, int(rowIdx))
		if !ok {
			return nil, fmt.Errorf("codec: invalid matrix row slice")
		}
		d.objs[id] = o
		return o, nil
	case okError:
		kindStr, err := readString(d.r)
		if err != nil {
			return nil, err
		}
		msg, err := readString(d.r)
		if err != nil {
			return nil, err
		}
		o := value.NewError(kindStr, msg)
		d.objs[id] = o
		return o, nil
	case okFun:
		modPath, err := readStrings(d.r)
		if err != nil {
			return nil, err
		}
		name, err := readString(d.r)
		if err != nil {
			return nil, err
		}
		args, err := readStrings(d.r)
		if err != nil {
			return nil, err
		}
		raw, err := readBytes(d.r)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody(raw)
		if err != nil {
			return nil, err
		}
		o := value.NewFun(modPath, name, args, body)
		d.objs[id] = o
		return o, nil
	case okBuiltinFun:
		name, err := readString(d.r)
		if err != nil {
			return nil, err
		}
		if bf, ok := d.builtins[name]; ok {
			d.objs[id] = bf
			return bf, nil
		}
		o := value.NewBuiltinFun(name, nil)
		d.objs[id] = o
		return o, nil
	default:
		return nil, fmt.Errorf("codec: unknown object kind %d", kind)
	}
}

// readMatrixData reads the shape written by writeMatrixData as logical
// (rows, cols) plus physical data, for reconstructing a Matrix view.
func (d *decoder) readMatrixData() (rows, cols int, data []float32, transposed bool, err error) {
	physRows, physCols, t, dat, err := d.readMatrixArrayFields()
	if err != nil {
		return 0, 0, nil, false, err
	}
	return physRows, physCols, dat, t, nil
}

func (d *decoder) readMatrixArrayFields() (rows, cols int, transposed bool, data []float32, err error) {
	r, err := readU64(d.r)
	if err != nil {
		return 0, 0, false, nil, err
	}
	c, err := readU64(d.r)
	if err != nil {
		return 0, 0, false, nil, err
	}
	t, err := readBool(d.r)
	if err != nil {
		return 0, 0, false, nil, err
	}
	fs, err := readFloats(d.r)
	if err != nil {
		return 0, 0, false, nil, err
	}
	return int(r), int(c), t, fs, nil
}

func (d *decoder) readMutNew() (value.MutObject, error) {
	id, err := readU64(d.r)
	if err != nil {
		return nil, err
	}
	kind, err := readByte(d.r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case mkArray:
		arr := value.NewArray(nil)
		d.muts[id] = arr
		n, err := readU64(d.r)
		if err != nil {
			return nil, err
		}
		arr.Elems = make([]value.Value, n)
		for i := range arr.Elems {
			v, err := d.readValue()
			if err != nil {
				return nil, err
			}
			arr.Elems[i] = v
		}
		return arr, nil
	case mkStruct:
		st := value.NewStruct()
		d.muts[id] = st
		n, err := readU64(d.r)
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < n; i++ {
			k, err := readString(d.r)
			if err != nil {
				return nil, err
			}
			v, err := d.readValue()
			if err != nil {
				return nil, err
			}
			st.Set(k, v)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("codec: unknown mutable object kind %d", kind)
	}
}

// ---- primitive read/write helpers ----

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeBool(w io.Writer, b bool) error {
	if b {
		return writeByte(w, 1)
	}
	return writeByte(w, 0)
}

func readBool(r io.Reader) (bool, error) {
	b, err := readByte(r)
	return b != 0, err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeI64(w io.Writer, v int64) error { return writeU64(w, uint64(v)) }

func readI64(r io.Reader) (int64, error) {
	u, err := readU64(r)
	return int64(u), err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeF32(w io.Writer, v float32) error { return writeU32(w, math.Float32bits(v)) }

func readF32(r io.Reader) (float32, error) {
	u, err := readU32(r)
	return math.Float32frombits(u), err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeU64(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeString(w io.Writer, s string) error { return writeBytes(w, []byte(s)) }

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func writeStrings(w io.Writer, ss []string) error {
	if err := writeU64(w, uint64(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func writeFloats(w io.Writer, fs []float32) error {
	if err := writeU64(w, uint64(len(fs))); err != nil {
		return err
	}
	for _, f := range fs {
		if err := writeF32(w, f); err != nil {
			return err
		}
	}
	return nil
}

func readFloats(r io.Reader) ([]float32, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		f, err := readF32(r)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
