package condnode

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal"
)

// NeedleNode is the fused multi-needle `IN` node (§4.1.2): the builder
// merges adjacent same-column Equal conditions inside a disjunction into
// one of these rather than leaving them as N separate StringEqualNodes,
// because per-needle indexed equality loses to a single linear scan once
// the needle set is small. It owns the needle set (`m_needles`) and
// walks the haystack leaf in fixed-size blocks, checking set membership
// per row within a block before advancing to the next.
type NeedleNode struct {
	Col        objectdb.ColKey
	BlockSize  int
	needles    *internal.Set[string]

	unindexedDT float64
	leaf        objectdb.Leaf
	stats       Stats
}

// NewNeedleNode builds a NeedleNode over the given column and needle
// values. blockSize should be §4.1.2's 20 unless overridden by
// IndexConfig.FusionBlockSize.
func NewNeedleNode(col objectdb.ColKey, needles []string, blockSize int, unindexedDT float64) *NeedleNode {
	set := internal.NewSet[string]()
	for _, v := range needles {
		set.Add(v)
	}
	return &NeedleNode{Col: col, BlockSize: blockSize, needles: set, unindexedDT: unindexedDT}
}

// AddNeedle merges another Equal condition's literal into this node, the
// operation the builder performs while fusing an `IN`/disjunction chain
// at build time (§3 invariant 7: "a node may be mutated only at build
// time, before first evaluation").
func (n *NeedleNode) AddNeedle(value string) { n.needles.Add(value) }

func (n *NeedleNode) Init(willQueryRanges bool) error {
	n.stats.DT = n.unindexedDT
	if n.BlockSize <= 0 {
		n.BlockSize = 20
	}
	return nil
}

func (n *NeedleNode) TableChanged(table objectdb.TableKey) error { return nil }

func (n *NeedleNode) ClusterChanged(cluster objectdb.Cluster) error {
	l, err := cluster.Leaf(n.Col)
	if err != nil {
		return err
	}
	n.leaf = l
	return nil
}

func (n *NeedleNode) FindFirstLocal(start, end int) (int, error) {
	if n.leaf == nil {
		return objectdb.NotFound, nil
	}
	size := n.leaf.Size()
	if end > size {
		end = size
	}
	for blockStart := start; blockStart < end; blockStart += n.BlockSize {
		blockEnd := blockStart + n.BlockSize
		if blockEnd > end {
			blockEnd = end
		}
		for row := blockStart; row < blockEnd; row++ {
			n.stats.recordProbe()
			v, err := n.leaf.Get(row)
			if err != nil {
				return 0, err
			}
			if !v.Null && n.needles.Contains(v.Str()) {
				n.stats.recordMatch(float64(row))
				return row, nil
			}
		}
	}
	return objectdb.NotFound, nil
}

func (n *NeedleNode) Describe(state *DescribeState) string {
	vals := n.needles.ToSlice()
	sort.Strings(vals)
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = objectdb.FormatValue(objectdb.StringValue(v))
	}
	return fmt.Sprintf("%s IN (%s)", state.name(n.Col), strings.Join(quoted, ", "))
}

func (n *NeedleNode) Clone() Node {
	clone := &NeedleNode{Col: n.Col, BlockSize: n.BlockSize, unindexedDT: n.unindexedDT, needles: internal.NewSet[string]()}
	for _, v := range n.needles.ToSlice() {
		clone.needles.Add(v)
	}
	return clone
}

func (n *NeedleNode) CurrentStats() Stats { return n.stats }

var _ Node = (*NeedleNode)(nil)
