package condnode

import (
	"fmt"

	"github.com/lychee-technology/objectdb"
)

// CompareOp enumerates the scalar comparison variants over
// numeric/timestamp/bool/link columns (§4.1).
type CompareOp uint8

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

func (op CompareOp) String() string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	default:
		return "?"
	}
}

func (op CompareOp) apply(cmp int) bool {
	switch op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}

// CompareNode evaluates `column OP operand` over numeric, timestamp,
// bool, or link leaves (§4.1 Equal/NotEqual/Less/LessEqual/Greater/
// GreaterEqual). It always scans its leaf linearly; StringEqualNode
// is the index-accelerated counterpart for string equality.
type CompareNode struct {
	Col     objectdb.ColKey
	Op      CompareOp
	Operand objectdb.Value

	unindexedDT float64
	leaf        objectdb.Leaf
	stats       Stats
}

// NewCompareNode builds a CompareNode. unindexedDT is the per-probe cost
// published in Init, typically cfg.Index.UnindexedDT.
func NewCompareNode(col objectdb.ColKey, op CompareOp, operand objectdb.Value, unindexedDT float64) *CompareNode {
	return &CompareNode{Col: col, Op: op, Operand: operand, unindexedDT: unindexedDT}
}

func (n *CompareNode) Init(willQueryRanges bool) error {
	n.stats.DT = n.unindexedDT
	return nil
}

func (n *CompareNode) TableChanged(table objectdb.TableKey) error { return nil }

func (n *CompareNode) ClusterChanged(cluster objectdb.Cluster) error {
	l, err := cluster.Leaf(n.Col)
	if err != nil {
		return err
	}
	n.leaf = l
	return nil
}

func (n *CompareNode) FindFirstLocal(start, end int) (int, error) {
	if n.leaf == nil {
		return objectdb.NotFound, nil
	}
	size := n.leaf.Size()
	if end > size {
		end = size
	}
	for row := start; row < end; row++ {
		n.stats.recordProbe()
		v, err := n.leaf.Get(row)
		if err != nil {
			return 0, err
		}
		if n.Operand.Null || v.Null {
			// Null compared against anything (other than IS NULL, which
			// the builder lowers to Op==Equal with a null operand) never
			// satisfies an ordering comparison.
			if n.Op == OpEqual && v.Null && n.Operand.Null {
				n.stats.recordMatch(float64(row))
				return row, nil
			}
			if n.Op == OpNotEqual && v.Null != n.Operand.Null {
				n.stats.recordMatch(float64(row))
				return row, nil
			}
			continue
		}
		if n.Op.apply(v.Compare(n.Operand)) {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (n *CompareNode) Describe(state *DescribeState) string {
	return fmt.Sprintf("%s %s %s", state.name(n.Col), n.Op, objectdb.FormatValue(n.Operand))
}

func (n *CompareNode) Clone() Node {
	return &CompareNode{Col: n.Col, Op: n.Op, Operand: n.Operand, unindexedDT: n.unindexedDT}
}

func (n *CompareNode) CurrentStats() Stats { return n.stats }

var _ Node = (*CompareNode)(nil)
