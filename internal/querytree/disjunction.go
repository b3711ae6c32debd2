package querytree

import (
	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
)

// DisjunctionNode evaluates an OR of children: its first match in
// [start,end) is the minimum of each child's independent first match.
// Unlike ConjunctionNode it does no short-circuit bookkeeping across
// children, since an OR cannot skip re-verifying cheaper children once
// a costlier one advances the candidate.
type DisjunctionNode struct {
	children []condnode.Node
}

func NewDisjunction(children ...condnode.Node) *DisjunctionNode {
	return &DisjunctionNode{children: children}
}

func (d *DisjunctionNode) Init(willQueryRanges bool) error {
	for _, child := range d.children {
		// A disjunction branch is scanned with arbitrary, possibly
		// non-monotonic start values as the executor probes each
		// branch independently, so every child is built expecting
		// range queries regardless of what the caller requested.
		if err := child.Init(true || willQueryRanges); err != nil {
			return err
		}
	}
	return nil
}

func (d *DisjunctionNode) TableChanged(table objectdb.TableKey) error {
	for _, child := range d.children {
		if err := child.TableChanged(table); err != nil {
			return err
		}
	}
	return nil
}

func (d *DisjunctionNode) ClusterChanged(cluster objectdb.Cluster) error {
	for _, child := range d.children {
		if err := child.ClusterChanged(cluster); err != nil {
			return err
		}
	}
	return nil
}

func (d *DisjunctionNode) FindFirstLocal(start, end int) (int, error) {
	best := objectdb.NotFound
	for _, child := range d.children {
		m, err := child.FindFirstLocal(start, end)
		if err != nil {
			return 0, err
		}
		if m != objectdb.NotFound && (best == objectdb.NotFound || m < best) {
			best = m
		}
	}
	return best, nil
}

func (d *DisjunctionNode) Describe(state *condnode.DescribeState) string {
	if len(d.children) == 0 {
		return "FALSEPREDICATE"
	}
	out := "(" + d.children[0].Describe(state)
	for _, child := range d.children[1:] {
		out += " OR " + child.Describe(state)
	}
	return out + ")"
}

func (d *DisjunctionNode) Clone() condnode.Node {
	clones := make([]condnode.Node, len(d.children))
	for i, child := range d.children {
		clones[i] = child.Clone()
	}
	return &DisjunctionNode{children: clones}
}

// Children exposes the disjunction's branches so Tree.Explain can walk
// the full cost tree.
func (d *DisjunctionNode) Children() []condnode.Node { return d.children }

func (d *DisjunctionNode) CurrentStats() condnode.Stats {
	var s condnode.Stats
	for _, child := range d.children {
		cs := child.CurrentStats()
		s.DT += cs.DT
		s.Probes += cs.Probes
		s.Matches += cs.Matches
	}
	if len(d.children) > 0 {
		s.DT /= float64(len(d.children))
	}
	return s
}

var _ condnode.Node = (*DisjunctionNode)(nil)
var _ condnode.Composite = (*DisjunctionNode)(nil)
