// Package query implements the build-time Query API (§6): compiling
// predicate text into a bound node tree plus descriptor ordering, and
// exposing count/find_all/aggregate/get_description over the result.
//
// It sits above parser, querytree, ordering, and resultview rather than
// inside any one of them because parser already imports querytree to
// lower an ast.Query into a Tree — Query needs both parser and
// querytree, so it cannot live in either without a cycle. This mirrors
// the teacher's own split between its internal package (which the root
// package never imports) and factory, the separate non-internal package
// that wires root and internal types together.
package query

import (
	"context"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
	"github.com/lychee-technology/objectdb/internal/expr"
	"github.com/lychee-technology/objectdb/internal/ordering"
	"github.com/lychee-technology/objectdb/internal/parser"
	"github.com/lychee-technology/objectdb/internal/querytree"
	"github.com/lychee-technology/objectdb/internal/resultview"
)

// Query is a predicate and descriptor ordering compiled against one
// table, ready to count, enumerate, or aggregate over (§6).
type Query struct {
	table objectdb.Table
	cfg   *objectdb.Config

	tree  treeRunner
	order *ordering.DescriptorOrdering
	text  string
}

// treeRunner is the subset of *querytree.Tree that Query drives, named
// here rather than imported so this package stays a pure consumer of
// whatever parser.Builder produced.
type treeRunner interface {
	Bind(willQueryRanges bool) error
	FindFirst(ctx context.Context) (objectdb.ObjKey, bool, error)
	FindAll(ctx context.Context) ([]objectdb.ObjKey, error)
	Count(ctx context.Context) (int64, error)
	Describe(state *condnode.DescribeState) string
	Explain(state *condnode.DescribeState) querytree.ExplainNode
}

// Build parses text against table's schema and lowers it into a bound
// Query. args supplies the query's `$N` argument list (§4.5).
func Build(table objectdb.Table, cfg *objectdb.Config, indexes parser.IndexLookup, text string, args []objectdb.Value) (*Query, error) {
	if cfg == nil {
		cfg = objectdb.DefaultConfig()
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	b := parser.NewBuilder(table, args, cfg)
	b.Indexes = indexes
	built, err := b.Build(parsed)
	if err != nil {
		return nil, err
	}
	return &Query{table: table, cfg: cfg, tree: built.Tree, order: built.Ordering, text: text}, nil
}

// Count returns the number of rows satisfying the predicate (§6).
func (q *Query) Count(ctx context.Context) (int64, error) {
	if err := q.tree.Bind(false); err != nil {
		return 0, err
	}
	return q.tree.Count(ctx)
}

// staticVersion adapts a plain objectdb.Storage with no native version
// counter to resultview.VersionedStorage, always reporting version 0 —
// SyncIfNeeded then degrades to "never stale" instead of the view
// failing to build.
type staticVersion struct{ objectdb.Storage }

func (staticVersion) Version(ctx context.Context, table objectdb.TableKey) (uint64, error) {
	return 0, nil
}

// FindAll materializes every matching ObjKey, applies the descriptor
// ordering, and returns a resultview.ResultView (§6).
func (q *Query) FindAll(ctx context.Context) (*resultview.ResultView, error) {
	if err := q.tree.Bind(false); err != nil {
		return nil, err
	}
	keys, err := q.tree.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	vs, ok := q.table.Storage.(resultview.VersionedStorage)
	if !ok {
		vs = staticVersion{q.table.Storage}
	}
	version, err := vs.Version(ctx, q.table.Key)
	if err != nil {
		return nil, objectdb.NewIOError(err)
	}
	view := resultview.New(q.table.Key, vs, keys, version)
	if err := view.ApplyDescriptorOrdering(ctx, q.order); err != nil {
		return nil, err
	}
	return view, nil
}

// Aggregate folds col's values across every matching row (§6:
// `aggregate(spec) -> Mixed`), reusing expr.AggregateExpr's fold rules.
func (q *Query) Aggregate(ctx context.Context, col objectdb.ColKey, kind expr.AggregateKind) (objectdb.Value, error) {
	if err := q.tree.Bind(false); err != nil {
		return objectdb.Value{}, err
	}
	keys, err := q.tree.FindAll(ctx)
	if err != nil {
		return objectdb.Value{}, err
	}
	elemKind, err := q.table.Schema.ColumnKind(q.table.Key, col)
	if err != nil {
		return objectdb.Value{}, err
	}
	values := make([]objectdb.Value, 0, len(keys))
	for _, key := range keys {
		obj, err := q.table.Objects.Resolve(ctx, q.table.Key, key)
		if err != nil {
			return objectdb.Value{}, err
		}
		v, err := obj.Get(col)
		if err != nil {
			return objectdb.Value{}, err
		}
		values = append(values, v)
	}
	source := expr.NewLiteral(objectdb.ListValue(elemKind, values))
	return expr.NewAggregate(kind, source).Evaluate(0)
}

// GetDescription renders the compiled predicate and descriptor ordering
// back to the textual DSL (§6: `get_description() -> String`).
func (q *Query) GetDescription() string {
	state := &condnode.DescribeState{Table: q.table.Key, ColumnName: q.columnName}
	out := q.tree.Describe(state)
	if suffix := q.order.Describe(ordering.ColumnNameFunc(q.columnName)); suffix != "" {
		out += " " + suffix
	}
	return out
}

// Explain runs the query and returns the resulting cost tree: every
// node's rendered predicate alongside the condnode.Stats (dT, dD,
// probes, matches) it published during the run. It generalizes the
// teacher's queryoptimizer.PlanExplain, a flat description of a
// generated SQL plan, into a per-node breakdown of the in-process
// condition tree this engine actually executes.
func (q *Query) Explain(ctx context.Context) (querytree.ExplainNode, error) {
	if err := q.tree.Bind(false); err != nil {
		return querytree.ExplainNode{}, err
	}
	if _, err := q.tree.Count(ctx); err != nil {
		return querytree.ExplainNode{}, err
	}
	state := &condnode.DescribeState{Table: q.table.Key, ColumnName: q.columnName}
	return q.tree.Explain(state), nil
}

func (q *Query) columnName(table objectdb.TableKey, col objectdb.ColKey) string {
	def, err := q.table.Schema.TableByKey(table)
	if err != nil {
		return ""
	}
	for _, c := range def.Columns {
		if c.Key == col {
			return c.Name
		}
	}
	return ""
}

// Reparse rebuilds a Query from a textual description previously
// produced by GetDescription, the vehicle for the
// parse(Q.describe()).describe() round-trip property (§8).
func Reparse(table objectdb.Table, cfg *objectdb.Config, indexes parser.IndexLookup, description string, args []objectdb.Value) (*Query, error) {
	return Build(table, cfg, indexes, description, args)
}
