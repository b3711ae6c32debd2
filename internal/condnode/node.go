// Package condnode implements the condition-node protocol (C2): the
// polymorphic single-predicate evaluators that a node tree (C3)
// conjoins, each publishing cost statistics the executor uses to
// reorder the conjunction adaptively (§4.1).
package condnode

import "github.com/lychee-technology/objectdb"

// Stats carries the cost-adaptive scheduling numbers a node publishes
// (§3, §4.1): dT (expected cost per probe), dD (expected distance
// between successive matches), and running probe/match counters the
// executor uses to re-rank children of a conjunction each cycle.
type Stats struct {
	DT      float64
	DD      float64
	Probes  int64
	Matches int64
}

func (s *Stats) recordProbe()          { s.Probes++ }
func (s *Stats) recordMatch(dist float64) {
	s.Matches++
	s.DD = dist
}

// DescribeState threads a column-name lookup through a tree's Describe
// call. query.Query fills ColumnName from the schema's column names; no
// key-path display prefix is applied.
type DescribeState struct {
	ColumnName func(table objectdb.TableKey, col objectdb.ColKey) string
	Table      objectdb.TableKey
}

func (s *DescribeState) name(col objectdb.ColKey) string {
	if s == nil || s.ColumnName == nil {
		return colKeyFallback(col)
	}
	return s.ColumnName(s.Table, col)
}

func colKeyFallback(col objectdb.ColKey) string {
	return "$col" + itoa(int32(col))
}

func itoa(v int32) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Node is the capability set every condition-node variant implements
// (§4.1): init -> table_changed -> cluster_changed* -> find_first_local*,
// plus describe/clone for serialisation and conjunction cloning (§3
// invariant 1: "cloning is deep").
type Node interface {
	// Init is called once at build time, before the node is ever bound
	// to a table. willQueryRanges hints whether the executor expects
	// FindFirstLocal to be called with varying, possibly non-monotonic
	// ranges (disjunction branch, SUBQUERY) as opposed to a single
	// linear conjunction scan; index-backed nodes use it to decide
	// whether to pre-materialise a full match list.
	Init(willQueryRanges bool) error
	// TableChanged rebinds the node to a new table, invalidating any
	// table-scoped index state.
	TableChanged(table objectdb.TableKey) error
	// ClusterChanged rebinds the node's leaf pointer to the given
	// cluster; per-cluster cursors reset.
	ClusterChanged(cluster objectdb.Cluster) error
	// FindFirstLocal returns the first row in [start,end) for which the
	// node's predicate holds, or objectdb.NotFound. It must be total,
	// monotone non-decreasing under non-decreasing start, and
	// idempotent under repeated identical calls (§4.1 contract).
	FindFirstLocal(start, end int) (int, error)
	// Describe renders the node's predicate as the textual DSL
	// fragment it was built from (§6 serialisation format).
	Describe(state *DescribeState) string
	// Clone returns a deep copy with fresh (zeroed) statistics, safe to
	// bind to an independent cluster walk.
	Clone() Node
	// CurrentStats exposes the node's published cost statistics.
	CurrentStats() Stats
}

// Composite is implemented by nodes that wrap one or more child nodes
// (conjunction, disjunction, not). Tree.Explain walks it to surface
// per-node statistics for the whole tree instead of only the root's
// aggregate Stats.
type Composite interface {
	Children() []Node
}
