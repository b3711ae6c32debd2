package condnode

import (
	"context"
	"fmt"

	"github.com/lychee-technology/objectdb"
)

// CountKind distinguishes the three `.@count`/`.@size` scalar-comparison
// node variants (§4.1): a single link, a list, and a backlink column.
type CountKind uint8

const (
	CountLink CountKind = iota
	CountList
	CountBacklink
)

// CountNode evaluates `column.@count OP operand` (or `.@size`, the same
// thing) against a link/list/backlink column, folding LinkCountNode,
// ListCountNode and BacklinkCountNode into one node parameterised by
// CountKind, since all three reduce to "count the column's keys, then
// compare" and differ only in how the count is obtained from Object.
type CountNode struct {
	Col     objectdb.ColKey
	Kind    CountKind
	Op      CompareOp
	Operand int64

	objects objectdb.ObjectSource
	table   objectdb.TableKey
	cluster objectdb.Cluster
	stats   Stats
}

func NewCountNode(col objectdb.ColKey, kind CountKind, op CompareOp, operand int64, objects objectdb.ObjectSource) *CountNode {
	return &CountNode{Col: col, Kind: kind, Op: op, Operand: operand, objects: objects}
}

func (n *CountNode) Init(willQueryRanges bool) error {
	n.stats.DT = 5 // one Object resolve + count per probe, cheaper than a full scan but not free
	return nil
}

func (n *CountNode) TableChanged(table objectdb.TableKey) error {
	n.table = table
	return nil
}

func (n *CountNode) ClusterChanged(cluster objectdb.Cluster) error {
	n.cluster = cluster
	return nil
}

func (n *CountNode) countAt(ctx context.Context, row int) (int64, error) {
	key, err := n.cluster.GetRealKey(row)
	if err != nil {
		return 0, err
	}
	obj, err := n.objects.Resolve(ctx, n.table, key)
	if err != nil {
		return 0, err
	}
	switch n.Kind {
	case CountBacklink:
		keys, err := obj.GetBacklinks(n.Col)
		if err != nil {
			return 0, err
		}
		return int64(len(keys)), nil
	default: // CountLink, CountList
		v, err := obj.Get(n.Col)
		if err != nil {
			return 0, err
		}
		if v.Null {
			return 0, nil
		}
		if n.Kind == CountList {
			return int64(len(v.Elems())), nil
		}
		return 1, nil
	}
}

func (n *CountNode) FindFirstLocal(start, end int) (int, error) {
	if n.cluster == nil {
		return objectdb.NotFound, nil
	}
	size := n.cluster.Size()
	if end > size {
		end = size
	}
	for row := start; row < end; row++ {
		n.stats.recordProbe()
		count, err := n.countAt(context.Background(), row)
		if err != nil {
			return 0, err
		}
		if n.Op.apply(compareInt(count, n.Operand)) {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (n *CountNode) Describe(state *DescribeState) string {
	suffix := "@count"
	return fmt.Sprintf("%s.%s %s %d", state.name(n.Col), suffix, n.Op, n.Operand)
}

func (n *CountNode) Clone() Node {
	clone := *n
	clone.stats = Stats{}
	return &clone
}

func (n *CountNode) CurrentStats() Stats { return n.stats }

var _ Node = (*CountNode)(nil)
