package objectdb

import (
	"bytes"
	"math"
)

// Value is a tagged union over the engine's value kinds (§3), used for
// literals, leaf reads, and expression results. It generalizes the
// teacher's attribute_converter.go value-switch (which dispatched on
// ValueType to marshal into/out of EAV numeric/text columns) into a
// single comparable runtime representation that never touches storage
// encoding itself.
type Value struct {
	Kind ValueKind
	Null bool

	i   int64
	f32 float32
	f64 float64
	b   bool
	s   string
	bin []byte
	ts  Timestamp
	ref ObjKey
	lst []Value
}

// NullValue constructs the null value of the given kind.
func NullValue(kind ValueKind) Value { return Value{Kind: kind, Null: true} }

func IntValue(v int64) Value       { return Value{Kind: KindInt, i: v} }
func BoolValue(v bool) Value       { return Value{Kind: KindBool, b: v} }
func FloatValue(v float32) Value   { return Value{Kind: KindFloat, f32: v} }
func DoubleValue(v float64) Value  { return Value{Kind: KindDouble, f64: v} }
func StringValue(v string) Value   { return Value{Kind: KindString, s: v} }
func BinaryValue(v []byte) Value   { return Value{Kind: KindBinary, bin: v} }
func TimestampValue(v Timestamp) Value { return Value{Kind: KindTimestamp, ts: v} }
func LinkValue(v ObjKey) Value     { return Value{Kind: KindLink, ref: v} }
func ListValue(kind ValueKind, elems []Value) Value {
	return Value{Kind: KindList, lst: elems, f32: 0, i: int64(kind)}
}

func (v Value) Int() int64         { return v.i }
func (v Value) Bool() bool         { return v.b }
func (v Value) Float32() float32   { return v.f32 }
func (v Value) Float64() float64   { return v.f64 }
func (v Value) Str() string        { return v.s }
func (v Value) Bytes() []byte      { return v.bin }
func (v Value) Time() Timestamp    { return v.ts }
func (v Value) Link() ObjKey       { return v.ref }
func (v Value) Elems() []Value     { return v.lst }
func (v Value) ElemKind() ValueKind { return ValueKind(v.i) }

// Compare orders two values of the same kind per spec §3's null/NaN
// ordering invariants:
//   - null sorts below every non-null value of its kind.
//   - for Float/Double, NaN sorts below negative infinity, i.e. NaN is
//     the new minimum, below every other value including -Inf.
//
// Compare panics if a and b differ in Kind; callers (expr, ordering) are
// expected to have already type-checked operands before comparing.
func (a Value) Compare(b Value) int {
	if a.Kind != b.Kind {
		panic("objectdb: Compare called on mismatched value kinds")
	}
	if a.Null || b.Null {
		switch {
		case a.Null && b.Null:
			return 0
		case a.Null:
			return -1
		default:
			return 1
		}
	}
	switch a.Kind {
	case KindInt:
		return compareInt64(a.i, b.i)
	case KindBool:
		return compareBool(a.b, b.b)
	case KindFloat:
		return compareFloat(float64(a.f32), float64(b.f32))
	case KindDouble:
		return compareFloat(a.f64, b.f64)
	case KindString:
		return compareString(a.s, b.s)
	case KindBinary:
		return bytes.Compare(a.bin, b.bin)
	case KindTimestamp:
		return a.ts.Compare(b.ts)
	case KindLink:
		return compareInt64(int64(a.ref), int64(b.ref))
	default:
		panic("objectdb: Compare unsupported for kind " + a.Kind.String())
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a && b:
		return -1
	default:
		return 1
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareFloat implements NaN-as-minimum ordering: NaN < -Inf < ... < +Inf.
func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		// Distinct NaN bit patterns (signaling vs quiet, differing
		// payloads) still need a total order for sort/distinct's tie
		// breaking, so fall back to comparing the raw bits.
		ba, bb := math.Float64bits(a), math.Float64bits(b)
		switch {
		case ba < bb:
			return -1
		case ba > bb:
			return 1
		default:
			return 0
		}
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports value equality using Compare's ordering (so a NaN equals
// a NaN with the same bit pattern and null equals null, matching the
// engine's predicate semantics
// rather than IEEE-754 equality).
func (a Value) Equal(b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	return a.Compare(b) == 0
}
