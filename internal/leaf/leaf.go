// Package leaf provides a generic, in-memory Leaf implementation (C1):
// a uniform typed view over one column slice within a cluster. The
// storage adapters (storage/memstore, storage/duckstore, storage/pgstore)
// and the condition-node tests each define their own Leaf type instead
// of using this one.
package leaf

import (
	"sort"

	"github.com/lychee-technology/objectdb"
)

// Column is a dense, nullable, in-memory column slice: parallel `values`
// and `present` arrays over row offsets, plus the per-row ObjKey needed
// for LowerBoundKey. It satisfies objectdb.Leaf directly. This replaces
// the teacher's attribute_converter.go per-ValueType EAV marshalling
// with a single generic container keyed on objectdb.Value.
type Column struct {
	kind    objectdb.ValueKind
	values  []objectdb.Value
	present []bool
	keys    []objectdb.ObjKey // parallel real keys, ascending
}

// NewColumn builds a Column from parallel values/presence/keys slices.
// All three must have equal length; keys must already be ascending, as
// Cluster.GetRealKey and LowerBoundKey assume.
func NewColumn(kind objectdb.ValueKind, values []objectdb.Value, present []bool, keys []objectdb.ObjKey) *Column {
	return &Column{kind: kind, values: values, present: present, keys: keys}
}

func (c *Column) Kind() objectdb.ValueKind { return c.kind }

func (c *Column) Size() int { return len(c.values) }

func (c *Column) Get(row int) (objectdb.Value, error) {
	if row < 0 || row >= len(c.values) {
		return objectdb.Value{}, objectdb.NewOutOfRange("leaf row %d out of range [0,%d)", row, len(c.values))
	}
	if !c.present[row] {
		return objectdb.NullValue(c.kind), nil
	}
	return c.values[row], nil
}

// FindFirst performs an unindexed linear scan for value in [start,end),
// the dT≈10 tier of §4.1.1. Indexed/enum tiers are implemented by
// internal/condnode.StringEqualNode directly against an objectdb.Index,
// not here.
func (c *Column) FindFirst(value objectdb.Value, start, end int) (int, error) {
	if end > len(c.values) {
		end = len(c.values)
	}
	for row := start; row < end; row++ {
		v, err := c.Get(row)
		if err != nil {
			return 0, err
		}
		if v.Null == value.Null && (value.Null || v.Equal(value)) {
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

// LowerBoundKey returns the smallest row whose real key is >= key.
func (c *Column) LowerBoundKey(key objectdb.ObjKey) int {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= key })
	if i == len(c.keys) {
		return objectdb.NotFound
	}
	return i
}

var _ objectdb.Leaf = (*Column)(nil)
