// Package expr implements the expression engine (C4): arithmetic and
// comparison over column expressions, aggregates, subqueries, and
// quantifiers over link/list-valued paths (§4.2).
package expr

import (
	"context"
	"fmt"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/linkmap"
)

// Expr is the common capability every expression-tree node exposes
// (§4.2): bind to a table and cluster, then evaluate a row to a Value.
// List-valued intermediates (from a list column or a non-unary link
// map hop) are represented as a Value of KindList.
type Expr interface {
	SetBaseTable(table objectdb.TableKey) error
	SetCluster(cluster objectdb.Cluster) error
	Evaluate(row int) (objectdb.Value, error)
	Describe() string
}

// ColumnExpr reads a scalar or list column directly off the bound
// cluster's leaf.
type ColumnExpr struct {
	Col  objectdb.ColKey
	Name string

	leaf objectdb.Leaf
}

func NewColumn(col objectdb.ColKey, name string) *ColumnExpr { return &ColumnExpr{Col: col, Name: name} }

func (e *ColumnExpr) SetBaseTable(table objectdb.TableKey) error { return nil }

func (e *ColumnExpr) SetCluster(cluster objectdb.Cluster) error {
	l, err := cluster.Leaf(e.Col)
	if err != nil {
		return err
	}
	e.leaf = l
	return nil
}

func (e *ColumnExpr) Evaluate(row int) (objectdb.Value, error) {
	if e.leaf == nil {
		return objectdb.Value{}, objectdb.NewInvalidQuery("column %s not bound to a cluster", e.Name)
	}
	return e.leaf.Get(row)
}

func (e *ColumnExpr) Describe() string { return e.Name }

// LiteralExpr is a constant, independent of row/cluster. The builder
// wraps each literal or argument operand in one; it does not fold
// literal-only sub-expressions.
type LiteralExpr struct{ Value objectdb.Value }

func NewLiteral(v objectdb.Value) *LiteralExpr { return &LiteralExpr{Value: v} }

func (e *LiteralExpr) SetBaseTable(table objectdb.TableKey) error { return nil }
func (e *LiteralExpr) SetCluster(cluster objectdb.Cluster) error  { return nil }
func (e *LiteralExpr) Evaluate(row int) (objectdb.Value, error)   { return e.Value, nil }
func (e *LiteralExpr) Describe() string                           { return objectdb.FormatValue(e.Value) }

// LinkPathExpr evaluates a chain of link hops starting at the current
// row's own key, then reads Tail off every key the chain reaches,
// producing a KindList intermediate (§4.2: "Polymorphic list traversal
// through a link map produces a multi-valued intermediate").
type LinkPathExpr struct {
	Chain   *linkmap.LinkMap
	Tail    objectdb.ColKey
	TailKind objectdb.ValueKind
	Objects objectdb.ObjectSource
	Name    string

	table   objectdb.TableKey
	cluster objectdb.Cluster
}

func NewLinkPath(chain *linkmap.LinkMap, tail objectdb.ColKey, tailKind objectdb.ValueKind, objects objectdb.ObjectSource, name string) *LinkPathExpr {
	return &LinkPathExpr{Chain: chain, Tail: tail, TailKind: tailKind, Objects: objects, Name: name}
}

func (e *LinkPathExpr) SetBaseTable(table objectdb.TableKey) error { e.table = table; return nil }

func (e *LinkPathExpr) SetCluster(cluster objectdb.Cluster) error { e.cluster = cluster; return nil }

func (e *LinkPathExpr) Evaluate(row int) (objectdb.Value, error) {
	startKey, err := e.cluster.GetRealKey(row)
	if err != nil {
		return objectdb.Value{}, err
	}
	var values []objectdb.Value
	walkErr := e.Chain.MapLinks(context.Background(), e.Objects, startKey, func(k objectdb.ObjKey) bool {
		lastTable := e.Chain.Hops[len(e.Chain.Hops)-1].Table
		obj, err := e.Objects.Resolve(context.Background(), lastTable, k)
		if err != nil {
			return false
		}
		v, err := obj.Get(e.Tail)
		if err != nil {
			return false
		}
		values = append(values, v)
		return true
	})
	if walkErr != nil {
		return objectdb.Value{}, walkErr
	}
	if !e.Chain.NonUnary() && len(values) <= 1 {
		if len(values) == 0 {
			return objectdb.NullValue(e.TailKind), nil
		}
		return values[0], nil
	}
	return objectdb.ListValue(e.TailKind, values), nil
}

func (e *LinkPathExpr) Describe() string { return e.Name }

// AggregateKind enumerates @min/@max/@sum/@avg/@count/@size (§4.2).
type AggregateKind uint8

const (
	AggMin AggregateKind = iota
	AggMax
	AggSum
	AggAvg
	AggCount
	AggSize
)

func (k AggregateKind) String() string {
	switch k {
	case AggMin:
		return "@min"
	case AggMax:
		return "@max"
	case AggSum:
		return "@sum"
	case AggAvg:
		return "@avg"
	case AggCount:
		return "@count"
	case AggSize:
		return "@size"
	default:
		return "@?"
	}
}

// AggregateExpr folds a list-valued (or string/binary, for @count/@size)
// source expression per §4.2's aggregate type rules. An empty list
// yields the null sentinel for min/max/sum/avg, and 0 for count/size
// (§3 invariant 6).
type AggregateExpr struct {
	Kind   AggregateKind
	Source Expr
}

func NewAggregate(kind AggregateKind, source Expr) *AggregateExpr {
	return &AggregateExpr{Kind: kind, Source: source}
}

func (e *AggregateExpr) SetBaseTable(table objectdb.TableKey) error {
	return e.Source.SetBaseTable(table)
}
func (e *AggregateExpr) SetCluster(cluster objectdb.Cluster) error {
	return e.Source.SetCluster(cluster)
}

func (e *AggregateExpr) Evaluate(row int) (objectdb.Value, error) {
	src, err := e.Source.Evaluate(row)
	if err != nil {
		return objectdb.Value{}, err
	}
	switch e.Kind {
	case AggCount, AggSize:
		switch {
		case src.Null:
			return objectdb.IntValue(0), nil
		case src.Kind == objectdb.KindString:
			return objectdb.IntValue(int64(len(src.Str()))), nil
		case src.Kind == objectdb.KindBinary:
			return objectdb.IntValue(int64(len(src.Bytes()))), nil
		case src.Kind == objectdb.KindList:
			return objectdb.IntValue(int64(len(src.Elems()))), nil
		default:
			return objectdb.IntValue(0), nil
		}
	}
	if src.Kind != objectdb.KindList {
		return objectdb.Value{}, objectdb.NewUnsupported("%s requires a list-valued source", e.Kind)
	}
	elems := src.Elems()
	if len(elems) == 0 {
		return objectdb.NullValue(src.ElemKind()), nil
	}
	switch src.ElemKind() {
	case objectdb.KindInt:
		return e.foldInt(elems)
	case objectdb.KindFloat:
		return e.foldFloat32(elems)
	case objectdb.KindDouble:
		return e.foldFloat64(elems)
	case objectdb.KindTimestamp:
		return e.foldTimestamp(elems)
	default:
		return objectdb.Value{}, objectdb.NewUnsupported("%s requires a numeric or timestamp element kind, got %s", e.Kind, src.ElemKind())
	}
}

func (e *AggregateExpr) foldInt(elems []objectdb.Value) (objectdb.Value, error) {
	if e.Kind == AggMin || e.Kind == AggMax {
		best := elems[0].Int()
		for _, v := range elems[1:] {
			if (e.Kind == AggMin && v.Int() < best) || (e.Kind == AggMax && v.Int() > best) {
				best = v.Int()
			}
		}
		return objectdb.IntValue(best), nil
	}
	var sum int64
	for _, v := range elems {
		sum = addIntWrap(sum, v.Int())
	}
	if e.Kind == AggAvg {
		return objectdb.DoubleValue(float64(sum) / float64(len(elems))), nil
	}
	return objectdb.IntValue(sum), nil
}

func (e *AggregateExpr) foldFloat32(elems []objectdb.Value) (objectdb.Value, error) {
	if e.Kind == AggMin || e.Kind == AggMax {
		best := elems[0]
		for _, v := range elems[1:] {
			cmp := v.Compare(best)
			if (e.Kind == AggMin && cmp < 0) || (e.Kind == AggMax && cmp > 0) {
				best = v
			}
		}
		return best, nil
	}
	var sum float64
	for _, v := range elems {
		sum += float64(v.Float32())
	}
	if e.Kind == AggAvg {
		return objectdb.DoubleValue(sum / float64(len(elems))), nil
	}
	return objectdb.DoubleValue(sum), nil
}

func (e *AggregateExpr) foldFloat64(elems []objectdb.Value) (objectdb.Value, error) {
	if e.Kind == AggMin || e.Kind == AggMax {
		best := elems[0]
		for _, v := range elems[1:] {
			cmp := v.Compare(best)
			if (e.Kind == AggMin && cmp < 0) || (e.Kind == AggMax && cmp > 0) {
				best = v
			}
		}
		return best, nil
	}
	var sum float64
	for _, v := range elems {
		sum += v.Float64()
	}
	if e.Kind == AggAvg {
		return objectdb.DoubleValue(sum / float64(len(elems))), nil
	}
	return objectdb.DoubleValue(sum), nil
}

func (e *AggregateExpr) foldTimestamp(elems []objectdb.Value) (objectdb.Value, error) {
	if e.Kind != AggMin && e.Kind != AggMax {
		return objectdb.Value{}, objectdb.NewUnsupported("%s is not defined over timestamps", e.Kind)
	}
	best := elems[0].Time()
	for _, v := range elems[1:] {
		t := v.Time()
		if (e.Kind == AggMin && t.Compare(best) < 0) || (e.Kind == AggMax && t.Compare(best) > 0) {
			best = t
		}
	}
	return objectdb.TimestampValue(best), nil
}

func (e *AggregateExpr) Describe() string { return e.Source.Describe() + "." + e.Kind.String() }

// addIntWrap implements wrap-around two's-complement addition (§7:
// arithmetic overflows "follow two's-complement unsigned addition and
// never raise").
func addIntWrap(a, b int64) int64 {
	return int64(uint64(a) + uint64(b))
}

// ComparisonExpr evaluates `left OP right` where both sides are
// arbitrary expressions, producing a Bool.
type ComparisonExpr struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

type CompareOp uint8

const (
	CmpEqual CompareOp = iota
	CmpNotEqual
	CmpLess
	CmpLessEqual
	CmpGreater
	CmpGreaterEqual
)

func NewComparison(op CompareOp, left, right Expr) *ComparisonExpr {
	return &ComparisonExpr{Op: op, Left: left, Right: right}
}

func (e *ComparisonExpr) SetBaseTable(table objectdb.TableKey) error {
	if err := e.Left.SetBaseTable(table); err != nil {
		return err
	}
	return e.Right.SetBaseTable(table)
}

func (e *ComparisonExpr) SetCluster(cluster objectdb.Cluster) error {
	if err := e.Left.SetCluster(cluster); err != nil {
		return err
	}
	return e.Right.SetCluster(cluster)
}

func (e *ComparisonExpr) Evaluate(row int) (objectdb.Value, error) {
	ok, err := e.EvaluateBool(row)
	if err != nil {
		return objectdb.Value{}, err
	}
	return objectdb.BoolValue(ok), nil
}

// EvaluateBool satisfies internal/condnode.BoolExpression.
func (e *ComparisonExpr) EvaluateBool(row int) (bool, error) {
	l, err := e.Left.Evaluate(row)
	if err != nil {
		return false, err
	}
	r, err := e.Right.Evaluate(row)
	if err != nil {
		return false, err
	}
	if l.Kind == objectdb.KindList && r.Kind == objectdb.KindList {
		return false, objectdb.NewUnsupported("list-vs-list comparisons are unsupported")
	}
	if l.Kind == objectdb.KindList || r.Kind == objectdb.KindList {
		// A list against a scalar is an implicit ANY: only one side is a
		// list here, so this ranges over that side's elements.
		for _, el := range append(l.Elems(), r.Elems()...) {
			left, right := NewLiteral(el), NewLiteral(r)
			if r.Kind == objectdb.KindList {
				left, right = NewLiteral(l), NewLiteral(el)
			}
			if ok, err := NewComparison(e.Op, left, right).EvaluateBool(row); err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	if l.Null || r.Null {
		switch e.Op {
		case CmpEqual:
			return l.Null && r.Null, nil
		case CmpNotEqual:
			return l.Null != r.Null, nil
		default:
			return false, nil
		}
	}
	cmp := l.Compare(r)
	switch e.Op {
	case CmpEqual:
		return cmp == 0, nil
	case CmpNotEqual:
		return cmp != 0, nil
	case CmpLess:
		return cmp < 0, nil
	case CmpLessEqual:
		return cmp <= 0, nil
	case CmpGreater:
		return cmp > 0, nil
	case CmpGreaterEqual:
		return cmp >= 0, nil
	default:
		return false, nil
	}
}

func (e *ComparisonExpr) Describe() string {
	return fmt.Sprintf("%s %s %s", e.Left.Describe(), opSymbol(e.Op), e.Right.Describe())
}

func opSymbol(op CompareOp) string {
	switch op {
	case CmpEqual:
		return "=="
	case CmpNotEqual:
		return "!="
	case CmpLess:
		return "<"
	case CmpLessEqual:
		return "<="
	case CmpGreater:
		return ">"
	case CmpGreaterEqual:
		return ">="
	default:
		return "?"
	}
}
