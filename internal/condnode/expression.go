package condnode

import "github.com/lychee-technology/objectdb"

// BoolExpression is the minimal capability ExpressionNode needs from the
// expression engine (C4): per-row boolean evaluation, plus the same
// table/cluster binding lifecycle every node has. internal/expr's
// compiled expression trees satisfy this interface; condnode never
// imports internal/expr directly, avoiding a cycle since expr's
// SUBQUERY compiles a fresh condnode tree internally.
type BoolExpression interface {
	SetBaseTable(table objectdb.TableKey) error
	SetCluster(cluster objectdb.Cluster) error
	EvaluateBool(row int) (bool, error)
	Describe() string
}

// ExpressionNode wraps a general expression tree (C4) so it can
// participate as a conjunction child alongside the scalar comparison
// nodes (§4.1).
type ExpressionNode struct {
	Expr BoolExpression

	stats Stats
}

func NewExpressionNode(expr BoolExpression) *ExpressionNode {
	return &ExpressionNode{Expr: expr}
}

func (n *ExpressionNode) Init(willQueryRanges bool) error {
	n.stats.DT = 8 // expression evaluation is costlier than a single comparison but cheaper than a subquery
	return nil
}

func (n *ExpressionNode) TableChanged(table objectdb.TableKey) error {
	return n.Expr.SetBaseTable(table)
}

func (n *ExpressionNode) ClusterChanged(cluster objectdb.Cluster) error {
	return n.Expr.SetCluster(cluster)
}

func (n *ExpressionNode) FindFirstLocal(start, end int) (int, error) {
	for row := start; row < end; row++ {
		n.stats.recordProbe()
		ok, err := n.Expr.EvaluateBool(row)
		if err != nil {
			return 0, err
		}
		if ok {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (n *ExpressionNode) Describe(state *DescribeState) string {
	return n.Expr.Describe()
}

func (n *ExpressionNode) Clone() Node {
	return &ExpressionNode{Expr: n.Expr}
}

func (n *ExpressionNode) CurrentStats() Stats { return n.stats }

var _ Node = (*ExpressionNode)(nil)
