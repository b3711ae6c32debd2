package querytree

import "github.com/lychee-technology/objectdb/internal/condnode"

// ExplainNode is one entry in a Tree's cost explain: a node's rendered
// predicate alongside the condnode.Stats it published during the run,
// with its children (if any) explained recursively. It generalizes the
// teacher's queryoptimizer.PlanExplain — a single flat plan description
// for a SQL rewrite — into a per-node cost breakdown over the in-process
// condition tree this engine actually walks.
type ExplainNode struct {
	Description string
	Stats       condnode.Stats
	Children    []ExplainNode
}

// Explain renders the bound tree's root and every descendant condition
// node into an ExplainNode, after a run has populated their Stats.
func (t *Tree) Explain(state *condnode.DescribeState) ExplainNode {
	return explainNode(t.Root, state)
}

func explainNode(n condnode.Node, state *condnode.DescribeState) ExplainNode {
	en := ExplainNode{
		Description: n.Describe(state),
		Stats:       n.CurrentStats(),
	}
	if c, ok := n.(condnode.Composite); ok {
		children := c.Children()
		en.Children = make([]ExplainNode, len(children))
		for i, child := range children {
			en.Children[i] = explainNode(child, state)
		}
	}
	return en
}
