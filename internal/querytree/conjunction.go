// Package querytree implements the node tree / query executor (C3): a
// conjunction of condition nodes (internal/condnode) walked cluster by
// cluster, producing find_first, count, and aggregate results.
package querytree

import (
	"sort"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
)

// ConjunctionNode executes the §4.1 find_first loop over its children,
// short-circuiting already-satisfied predicates and adaptively
// reordering children by published cost (cheapest dT first) once per
// full pass.
type ConjunctionNode struct {
	children []condnode.Node
	order    []int // permutation of children indices, cheapest-first
}

// NewConjunction builds a conjunction over the given children in
// builder-supplied order; adaptive reordering only kicks in once each
// child has published at least one real dT via Init.
func NewConjunction(children ...condnode.Node) *ConjunctionNode {
	order := make([]int, len(children))
	for i := range order {
		order[i] = i
	}
	return &ConjunctionNode{children: children, order: order}
}

func (c *ConjunctionNode) Init(willQueryRanges bool) error {
	for _, child := range c.children {
		if err := child.Init(willQueryRanges); err != nil {
			return err
		}
	}
	c.reorder()
	return nil
}

func (c *ConjunctionNode) TableChanged(table objectdb.TableKey) error {
	for _, child := range c.children {
		if err := child.TableChanged(table); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConjunctionNode) ClusterChanged(cluster objectdb.Cluster) error {
	for _, child := range c.children {
		if err := child.ClusterChanged(cluster); err != nil {
			return err
		}
	}
	return nil
}

// reorder sorts the execution permutation by each child's last-observed
// dT, cheapest first (§4.1: "The ordering is re-chosen per conjunction
// cycle at run time.").
func (c *ConjunctionNode) reorder() {
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.children[c.order[i]].CurrentStats().DT < c.children[c.order[j]].CurrentStats().DT
	})
}

// FindFirstLocal implements the conjunction short-circuit loop from
// §4.1 verbatim: a child that doesn't match at the current candidate
// advances it and forces every other child to re-verify.
func (c *ConjunctionNode) FindFirstLocal(start, end int) (int, error) {
	n := len(c.children)
	if n == 0 {
		if start < end {
			return start, nil
		}
		return objectdb.NotFound, nil
	}
	c.reorder()
	current := 0
	remaining := n
	for start < end {
		child := c.children[c.order[current]]
		m, err := child.FindFirstLocal(start, end)
		if err != nil {
			return 0, err
		}
		if m == objectdb.NotFound {
			return objectdb.NotFound, nil
		}
		if m != start {
			remaining = n
			start = m
		}
		remaining--
		if remaining == 0 {
			return m, nil
		}
		current = (current + 1) % n
		if current == 0 {
			c.reorder()
		}
	}
	return objectdb.NotFound, nil
}

func (c *ConjunctionNode) Describe(state *condnode.DescribeState) string {
	if len(c.children) == 0 {
		return "TRUEPREDICATE"
	}
	out := c.children[0].Describe(state)
	for _, child := range c.children[1:] {
		out += " AND " + child.Describe(state)
	}
	return out
}

// Clone satisfies condnode.Node; CloneConjunction returns the
// concrete type for callers (query.go, the builder) that need it.
func (c *ConjunctionNode) Clone() condnode.Node { return c.CloneConjunction() }

func (c *ConjunctionNode) CloneConjunction() *ConjunctionNode {
	clones := make([]condnode.Node, len(c.children))
	for i, child := range c.children {
		clones[i] = child.Clone()
	}
	return NewConjunction(clones...)
}

// Children exposes the conjunction's children in builder order so
// Tree.Explain can walk the full cost tree, not just the root.
func (c *ConjunctionNode) Children() []condnode.Node { return c.children }

// CurrentStats aggregates child statistics so a ConjunctionNode can
// itself be nested as a child (e.g. NOT(a AND b)).
func (c *ConjunctionNode) CurrentStats() condnode.Stats {
	var s condnode.Stats
	for _, child := range c.children {
		cs := child.CurrentStats()
		s.DT += cs.DT
		s.Probes += cs.Probes
		s.Matches += cs.Matches
	}
	return s
}

var _ condnode.Node = (*ConjunctionNode)(nil)
var _ condnode.Composite = (*ConjunctionNode)(nil)
