package codec

import (
	"bytes"
	"testing"

	"github.com/luckboy/unlab-gpu/internal/backend"
	"github.com/luckboy/unlab-gpu/internal/testutil"
	"github.com/luckboy/unlab-gpu/internal/value"
)

// Grounded on original_source/src/io/tests.rs's
// test_write_values_and_read_values_writes_values_and_reads_values: a
// round trip of one of each scalar/object/ref kind preserves value equality.
func TestRoundTripScalarsAndObjects(t *testing.T) {
	ir, _ := value.NewIntRange(2, 4, 1)
	fr, _ := value.NewFloatRange(2, 4.5, 1.5)
	m := backend.New(3, 2, []float32{1, 2, 3, 4, 5, 6})

	values := []value.Value{
		value.None{},
		value.Bool(true),
		value.Bool(false),
		value.Int(1234),
		value.Float(12.34),
		value.Obj{O: value.NewString("abc")},
		value.Obj{O: ir},
		value.Obj{O: fr},
		value.Obj{O: value.NewMatrix(m)},
		value.Obj{O: value.NewError("abc", "def")},
		value.Ref{M: value.NewArray([]value.Value{value.Int(1), value.Float(2), value.Bool(false)})},
	}

	var buf bytes.Buffer
	if err := WriteValues(&buf, values); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != len(values) {
		t.Fatalf("got %d values, want %d", len(out), len(values))
	}
	s, ok := out[5].(value.Obj)
	if !ok || s.O.(*value.String).S != "abc" {
		t.Errorf("string round trip: got %#v", out[5])
	}
	e, ok := out[9].(value.Obj)
	if !ok || e.O.(*value.ErrorObj).EKind != "abc" || e.O.(*value.ErrorObj).Msg != "def" {
		t.Errorf("error round trip: got %#v", out[9])
	}
	arr, ok := out[10].(value.Ref)
	if !ok {
		t.Fatalf("array round trip: got %#v", out[10])
	}
	if len(arr.M.(*value.Array).Elems) != 3 {
		t.Errorf("array length: got %d", len(arr.M.(*value.Array).Elems))
	}
}

// Grounded on
// test_write_values_and_read_values_writes_values_and_reads_values_for_object_indices:
// repeated Obj values sharing one underlying String decode to the same
// pointer.
func TestRoundTripObjectIdentity(t *testing.T) {
	s := value.NewString("abc")
	s2 := value.NewString("def")
	values := []value.Value{
		value.Obj{O: s},
		value.Obj{O: s2},
		value.Obj{O: s},
		value.Obj{O: s},
		value.Obj{O: s2},
	}
	var buf bytes.Buffer
	if err := WriteValues(&buf, values); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	o0 := out[0].(value.Obj).O
	if out[2].(value.Obj).O != o0 || out[3].(value.Obj).O != o0 {
		t.Errorf("expected shared identity across repeated string object")
	}
	o1 := out[1].(value.Obj).O
	if out[4].(value.Obj).O != o1 {
		t.Errorf("expected shared identity for second string object")
	}
	if o0 == o1 {
		t.Errorf("distinct objects must not collapse to the same pointer")
	}
}

// Grounded on
// test_write_values_and_read_values_writes_values_and_reads_values_for_mutable_object_indices.
func TestRoundTripMutableIdentity(t *testing.T) {
	a := value.NewArray([]value.Value{value.Int(1)})
	b := value.NewArray([]value.Value{value.Int(2)})
	values := []value.Value{
		value.Ref{M: a},
		value.Ref{M: b},
		value.Ref{M: a},
		value.Ref{M: a},
		value.Ref{M: b},
	}
	var buf bytes.Buffer
	if err := WriteValues(&buf, values); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	r0 := out[0].(value.Ref).M
	if out[2].(value.Ref).M != r0 || out[3].(value.Ref).M != r0 {
		t.Errorf("expected shared identity across repeated array ref")
	}
}

// Grounded on
// test_write_values_and_read_values_writes_values_and_reads_values_for_reference_cycle:
// object2 holds a strong Ref to object, whose elems hold a Weak back to
// object2; the cycle round-trips without infinite recursion and the weak
// upgrades successfully.
func TestRoundTripReferenceCycle(t *testing.T) {
	object := value.NewArray([]value.Value{value.Int(1), value.Float(2), value.Bool(false)})
	object2 := value.NewArray([]value.Value{value.Int(2), value.Ref{M: object}})
	object.Elems = append(object.Elems, value.Weak{M: object2})

	values := []value.Value{value.Ref{M: object2}}
	var buf bytes.Buffer
	if err := WriteValues(&buf, values); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	gotObject2 := out[0].(value.Ref).M.(*value.Array)
	if len(gotObject2.Elems) != 2 {
		t.Fatalf("object2 elems: got %d, want 2", len(gotObject2.Elems))
	}
	gotObjectRef, ok := gotObject2.Elems[1].(value.Ref)
	if !ok {
		t.Fatalf("object2.elems[1] should be a Ref, got %#v", gotObject2.Elems[1])
	}
	gotObject := gotObjectRef.M.(*value.Array)
	if len(gotObject.Elems) != 4 {
		t.Fatalf("object elems: got %d, want 4", len(gotObject.Elems))
	}
	w, ok := gotObject.Elems[3].(value.Weak)
	if !ok {
		t.Fatalf("object.elems[3] should be Weak, got %#v", gotObject.Elems[3])
	}
	up, ok := w.Upgrade()
	if !ok {
		t.Fatalf("weak back-reference should upgrade")
	}
	if up.M != gotObject2 {
		t.Errorf("weak back-reference should upgrade to the same object2 instance")
	}
}

// A weak reference with no surviving strong owner among the written roots
// decodes as dead, mirroring Arc/Weak liveness.
func TestRoundTripDeadWeak(t *testing.T) {
	orphan := value.NewArray(nil)
	values := []value.Value{value.Weak{M: orphan}}
	var buf bytes.Buffer
	if err := WriteValues(&buf, values); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	w := out[0].(value.Weak)
	if _, ok := w.Upgrade(); ok {
		t.Errorf("weak with no strong owner among roots should be dead")
	}
}

// Grounded on BuiltinFun's "resolved by name on decode" contract (spec §4.6).
func TestRoundTripBuiltinFunLookup(t *testing.T) {
	fn := value.NewBuiltinFun("print", func(args []value.Value) (value.Value, error) { return value.None{}, nil })
	builtins := map[string]*value.BuiltinFun{"print": fn}

	var buf bytes.Buffer
	if err := WriteValues(&buf, []value.Value{value.Obj{O: fn}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, builtins)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := out[0].(value.Obj).O.(*value.BuiltinFun)
	if got != fn {
		t.Errorf("expected decode to resolve to the registered builtin instance")
	}
}

// Uses testutil.Diff for a structural comparison of the decoded range
// objects against freshly-constructed ones, rather than field-by-field
// assertions.
func TestRoundTripRangesMatchFreshValues(t *testing.T) {
	ir, _ := value.NewIntRange(2, 4, 1)
	fr, _ := value.NewFloatRange(2, 4.5, 1.5)
	values := []value.Value{value.Obj{O: ir}, value.Obj{O: fr}}

	var buf bytes.Buffer
	if err := WriteValues(&buf, values); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadValues(&buf, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// Identity (idBase) is assigned fresh on decode, so the diff compares
	// the semantic fields only, not object identity.
	type intFields struct{ Start, End, Step int64 }
	type floatFields struct{ Start, End, Step float32 }

	gotIR := out[0].(value.Obj).O.(*value.IntRange)
	wantIR := intFields{ir.Start, ir.End, ir.Step}
	gotIRFields := intFields{gotIR.Start, gotIR.End, gotIR.Step}
	if diff, equal := testutil.Diff(wantIR, gotIRFields); !equal {
		t.Errorf("int range round trip mismatch: %s\ngot: %s", diff, testutil.Sprint(gotIRFields))
	}

	gotFR := out[1].(value.Obj).O.(*value.FloatRange)
	wantFR := floatFields{fr.Start, fr.End, fr.Step}
	gotFRFields := floatFields{gotFR.Start, gotFR.End, gotFR.Step}
	if diff, equal := testutil.Diff(wantFR, gotFRFields); !equal {
		t.Errorf("float range round trip mismatch: %s\ngot: %s", diff, testutil.Sprint(gotFRFields))
	}
}
