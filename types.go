// Package objectdb implements an embedded, read-only object-database query
// engine: a composable tree of condition nodes that scans a clustered
// column store, plus the expression, link-traversal, descriptor-ordering
// and predicate-parsing layers built on top of it (spec §1-§2).
package objectdb

import "fmt"

// TableKey is an opaque, stable identifier for a table.
type TableKey int32

// ColKey is an opaque, stable identifier for a column. It is a plain
// integer handle; callers obtain one from a Schema and must not assume
// any particular encoding. The attribute bitmask (list/nullable/indexed)
// travels alongside it via Schema.ColumnAttributes, not inside the key
// itself — this keeps ColKey trivially comparable, unlike the teacher's
// EAV-era practice of looking attributes up by name string per predicate.
type ColKey int32

// ObjKey is a stable, totally-ordered object identifier (§3). Internally
// the storage layer may encode a cluster offset into it, but the engine
// only ever compares and orders ObjKeys — it never decodes them itself.
type ObjKey int64

func (k ObjKey) String() string { return fmt.Sprintf("ObjKey(%d)", int64(k)) }

// NotFound is the distinguished sentinel row value returned by
// FindFirstLocal and friends when no matching row exists in the
// requested range: the maximum representable row index (§7).
const NotFound int = int(^uint(0) >> 1)

// ValueKind enumerates the value kinds supported by the engine (§3).
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindBool
	KindFloat
	KindDouble
	KindString
	KindBinary
	KindTimestamp
	KindLink // single ObjKey
	KindList // list of any other kind
	KindBacklink
	KindMixed
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindBool:
		return "Bool"
	case KindFloat:
		return "Float"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindBinary:
		return "Binary"
	case KindTimestamp:
		return "Timestamp"
	case KindLink:
		return "Link"
	case KindList:
		return "List"
	case KindBacklink:
		return "Backlink"
	case KindMixed:
		return "Mixed"
	default:
		return "Unknown"
	}
}

// ColAttr is a bitmask of column attributes, carried alongside a ColKey by
// the Schema external interface (§6).
type ColAttr uint8

const (
	AttrNone        ColAttr = 0
	AttrList        ColAttr = 1 << iota
	AttrNullable
	AttrStrongLinks
	AttrIndexed
	// AttrStringEnum marks a string column backed by a small fixed
	// dictionary (§4.1.1's middle cost tier, dT≈1: cheaper than an
	// unindexed linear scan but without a materialized index).
	AttrStringEnum
)

// Has reports whether flag is set in the bitmask.
func (a ColAttr) Has(flag ColAttr) bool { return a&flag != 0 }

// LinkKind enumerates the hop kinds a LinkMap may traverse (§4.3).
type LinkKind uint8

const (
	LinkSingle LinkKind = iota
	LinkList
	LinkBacklink
)

func (k LinkKind) String() string {
	switch k {
	case LinkSingle:
		return "single"
	case LinkList:
		return "list"
	case LinkBacklink:
		return "backlink"
	default:
		return "unknown"
	}
}

// Timestamp is seconds + non-negative nanoseconds, per spec §3.
type Timestamp struct {
	Seconds     int64
	Nanoseconds int32
}

// Validate enforces the non-negative-nanoseconds invariant (§3, §8
// scenario 4: "T0:-1 is rejected").
func (t Timestamp) Validate() error {
	if t.Nanoseconds < 0 {
		return &QueryError{
			Kind:    OutOfRange,
			Message: fmt.Sprintf("timestamp nanoseconds must be non-negative, got %d", t.Nanoseconds),
		}
	}
	return nil
}

// Compare orders two timestamps: seconds first, then nanoseconds.
func (t Timestamp) Compare(o Timestamp) int {
	if t.Seconds != o.Seconds {
		if t.Seconds < o.Seconds {
			return -1
		}
		return 1
	}
	if t.Nanoseconds != o.Nanoseconds {
		if t.Nanoseconds < o.Nanoseconds {
			return -1
		}
		return 1
	}
	return 0
}

// SortDirection mirrors the teacher's SortOrder, renamed to the column's
// own concept (Sort descriptor, §4.4) rather than a REST pagination field.
type SortDirection uint8

const (
	Ascending SortDirection = iota
	Descending
)

func (d SortDirection) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}
