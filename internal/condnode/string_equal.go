package condnode

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/objectdb"
)

// stringTier enumerates the three cost tiers StringEqualNode.Init
// chooses between (§4.1.1).
type stringTier uint8

const (
	tierUnindexed stringTier = iota
	tierStringEnum
	tierIndexed
)

// StringEqualNode is the case-sensitive, index-accelerated string
// equality node (§4.1, §4.1.1). When an objectdb.Index is available for
// the column it materialises a sorted key list and walks it in lockstep
// with cluster transitions instead of scanning the leaf.
type StringEqualNode struct {
	Col        objectdb.ColKey
	Needle     string
	IsEnumCol  bool
	Index      objectdb.Index // nil if the column has no secondary index
	CostConfig StringCosts

	tier    stringTier
	matches []objectdb.ObjKey // m_index_matches, sorted ascending
	cursor  int
	lastStart int

	cluster objectdb.Cluster
	leaf    objectdb.Leaf
	stats   Stats
}

// StringCosts carries the three dT constants §4.1.1 names.
type StringCosts struct {
	IndexedDT   float64
	EnumDT      float64
	UnindexedDT float64
}

func (n *StringEqualNode) Init(willQueryRanges bool) error {
	switch {
	case n.Index != nil:
		n.tier = tierIndexed
		n.stats.DT = n.CostConfig.IndexedDT
		matches, err := n.Index.FindAll(objectdb.StringValue(n.Needle), false)
		if err != nil {
			return err
		}
		n.matches = matches
	case n.IsEnumCol:
		n.tier = tierStringEnum
		n.stats.DT = n.CostConfig.EnumDT
	default:
		n.tier = tierUnindexed
		n.stats.DT = n.CostConfig.UnindexedDT
	}
	return nil
}

func (n *StringEqualNode) TableChanged(table objectdb.TableKey) error {
	n.cursor = 0
	n.lastStart = 0
	return nil
}

func (n *StringEqualNode) ClusterChanged(cluster objectdb.Cluster) error {
	n.cluster = cluster
	if n.tier != tierIndexed {
		l, err := cluster.Leaf(n.Col)
		if err != nil {
			return err
		}
		n.leaf = l
	}
	return nil
}

func (n *StringEqualNode) FindFirstLocal(start, end int) (int, error) {
	if n.tier != tierIndexed {
		return n.scanLeaf(start, end)
	}
	return n.scanIndex(start, end)
}

func (n *StringEqualNode) scanLeaf(start, end int) (int, error) {
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
		if !v.Null && v.Str() == n.Needle {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

// scanIndex implements §4.1.1's four-step indexed walk.
func (n *StringEqualNode) scanIndex(start, end int) (int, error) {
	if len(n.matches) == 0 || n.cluster == nil {
		return objectdb.NotFound, nil
	}
	size := n.cluster.Size()
	if size == 0 {
		return objectdb.NotFound, nil
	}

	// Step 1: non-monotonic start resets the cursor.
	if start < n.lastStart {
		n.cursor = 0
	}
	n.lastStart = start

	firstKey, err := n.cluster.GetRealKey(0)
	if err != nil {
		return 0, err
	}
	lastKey, err := n.cluster.GetRealKey(size - 1)
	if err != nil {
		return 0, err
	}

	// Step 2: advance the cursor past keys before this cluster's range.
	for n.cursor < len(n.matches) && n.matches[n.cursor] < firstKey {
		n.cursor++
	}
	if n.cursor >= len(n.matches) {
		return objectdb.NotFound, nil
	}

	// Step 3: the pending key sorts after this cluster entirely.
	if n.matches[n.cursor] > lastKey {
		return objectdb.NotFound, nil
	}

	// Step 4: translate into a cluster-local row.
	for n.cursor < len(n.matches) {
		key := n.matches[n.cursor]
		if key > lastKey {
			return objectdb.NotFound, nil
		}
		row := n.cluster.LowerBoundKey(key)
		if row == objectdb.NotFound {
			n.cursor++
			continue
		}
		if row < start {
			n.cursor++
			continue
		}
		if row >= end {
			return objectdb.NotFound, nil
		}
		n.stats.recordMatch(float64(row))
		return row, nil
	}
	return objectdb.NotFound, nil
}

func (n *StringEqualNode) Describe(state *DescribeState) string {
	return fmt.Sprintf("%s == %s", state.name(n.Col), objectdb.FormatValue(objectdb.StringValue(n.Needle)))
}

func (n *StringEqualNode) Clone() Node {
	clone := *n
	clone.matches = append([]objectdb.ObjKey(nil), n.matches...)
	clone.cursor = 0
	clone.lastStart = 0
	clone.stats = Stats{}
	return &clone
}

func (n *StringEqualNode) CurrentStats() Stats { return n.stats }

var _ Node = (*StringEqualNode)(nil)

// StringEqualInsNode is the case-insensitive twin (§4.1): it always
// walks the index (producing matches sorted by key) when one exists,
// and otherwise folds both sides to a canonical case for comparison.
type StringEqualInsNode struct {
	Col    objectdb.ColKey
	Needle string
	Index  objectdb.Index
	Costs  StringCosts

	folded  string
	matches []objectdb.ObjKey
	cursor  int

	cluster objectdb.Cluster
	leaf    objectdb.Leaf
	stats   Stats
}

func (n *StringEqualInsNode) Init(willQueryRanges bool) error {
	n.folded = strings.ToLower(n.Needle)
	if n.Index != nil {
		n.stats.DT = n.Costs.IndexedDT
		matches, err := n.Index.FindAll(objectdb.StringValue(n.Needle), true)
		if err != nil {
			return err
		}
		n.matches = matches
		return nil
	}
	n.stats.DT = n.Costs.UnindexedDT
	return nil
}

func (n *StringEqualInsNode) TableChanged(table objectdb.TableKey) error { n.cursor = 0; return nil }

func (n *StringEqualInsNode) ClusterChanged(cluster objectdb.Cluster) error {
	n.cluster = cluster
	if n.Index == nil {
		l, err := cluster.Leaf(n.Col)
		if err != nil {
			return err
		}
		n.leaf = l
	}
	return nil
}

func (n *StringEqualInsNode) FindFirstLocal(start, end int) (int, error) {
	if n.Index != nil {
		return n.scanIndex(start, end)
	}
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
		if !v.Null && strings.EqualFold(v.Str(), n.Needle) {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (n *StringEqualInsNode) scanIndex(start, end int) (int, error) {
	if n.cluster == nil {
		return objectdb.NotFound, nil
	}
	for n.cursor < len(n.matches) {
		key := n.matches[n.cursor]
		row := n.cluster.LowerBoundKey(key)
		if row == objectdb.NotFound || row < start {
			n.cursor++
			continue
		}
		if row >= end {
			return objectdb.NotFound, nil
		}
		n.stats.recordMatch(float64(row))
		return row, nil
	}
	return objectdb.NotFound, nil
}

func (n *StringEqualInsNode) Describe(state *DescribeState) string {
	return fmt.Sprintf("%s ==[c] %s", state.name(n.Col), objectdb.FormatValue(objectdb.StringValue(n.Needle)))
}

func (n *StringEqualInsNode) Clone() Node {
	clone := *n
	clone.matches = append([]objectdb.ObjKey(nil), n.matches...)
	clone.cursor = 0
	clone.stats = Stats{}
	return &clone
}

func (n *StringEqualInsNode) CurrentStats() Stats { return n.stats }

var _ Node = (*StringEqualInsNode)(nil)
