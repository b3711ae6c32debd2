package parser

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
	"github.com/lychee-technology/objectdb/internal/expr"
	"github.com/lychee-technology/objectdb/internal/linkmap"
	"github.com/lychee-technology/objectdb/internal/ordering"
	"github.com/lychee-technology/objectdb/internal/parser/ast"
	"github.com/lychee-technology/objectdb/internal/querytree"
)

// IndexLookup is the optional collaborator a Builder consults to find a
// secondary index for a string-equality node (§4.1.1). Storage adapters
// that maintain an index register themselves here; adapters that don't
// leave Builder.Indexes nil, and every indexed column silently falls
// back to its StringEnum/Unindexed tier.
type IndexLookup interface {
	Index(table objectdb.TableKey, col objectdb.ColKey) objectdb.Index
}

// Builder lowers a parsed ast.Query into a bound condnode/querytree tree
// plus a descriptor ordering, against one base table (§4.5's compile
// step: "a predicate compiles to a node tree bound to a schema and an
// argument list").
type Builder struct {
	Table   objectdb.Table
	Args    []objectdb.Value
	Config  *objectdb.Config
	Indexes IndexLookup
}

// NewBuilder constructs a Builder over the given table handle. cfg may
// be nil, in which case objectdb.DefaultConfig() is used.
func NewBuilder(table objectdb.Table, args []objectdb.Value, cfg *objectdb.Config) *Builder {
	if cfg == nil {
		cfg = objectdb.DefaultConfig()
	}
	return &Builder{Table: table, Args: args, Config: cfg}
}

// Built is the result of compiling an ast.Query: a bound executable
// tree plus the descriptor ordering to apply to its results (§4.4/§6).
type Built struct {
	Tree       *querytree.Tree
	Ordering   *ordering.DescriptorOrdering
	LimitDescs []*ordering.LimitDescriptor
}

// Build compiles a full query (predicate plus descriptors) against the
// Builder's table.
func (b *Builder) Build(q *ast.Query) (*Built, error) {
	root, err := b.buildPredicate(q.Predicate)
	if err != nil {
		return nil, err
	}
	tree := querytree.New(root, b.Table.Storage, b.Table.Key)

	ord := ordering.New(b.Table.Key, b.Table.Objects)
	var limits []*ordering.LimitDescriptor
	for _, d := range q.Descriptors {
		desc, err := b.buildDescriptor(d)
		if err != nil {
			return nil, err
		}
		ord.Append(desc)
		if l, ok := desc.(*ordering.LimitDescriptor); ok {
			limits = append(limits, l)
		}
	}
	return &Built{Tree: tree, Ordering: ord, LimitDescs: limits}, nil
}

// --- predicate lowering ---------------------------------------------

func (b *Builder) buildPredicate(n ast.Node) (condnode.Node, error) {
	switch v := n.(type) {
	case ast.TruePredicate:
		return querytree.NewConjunction(), nil
	case ast.FalsePredicate:
		return querytree.NewDisjunction(), nil
	case ast.Logical:
		if v.Op == ast.LogicOr {
			if node, ok, err := b.buildEqualOrChain(v); err != nil {
				return nil, err
			} else if ok {
				return node, nil
			}
		}
		left, err := b.buildPredicate(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.buildPredicate(v.Right)
		if err != nil {
			return nil, err
		}
		if v.Op == ast.LogicAnd {
			return querytree.NewConjunction(left, right), nil
		}
		return querytree.NewDisjunction(left, right), nil
	case ast.Not:
		inner, err := b.buildPredicate(v.Inner)
		if err != nil {
			return nil, err
		}
		return condnode.NewNotNode(inner), nil
	case ast.Comparison:
		return b.buildComparison(v)
	case ast.InList:
		return b.buildInList(v)
	case ast.Quantified:
		return b.buildQuantified(v)
	case ast.Subquery:
		return b.buildSubqueryPredicate(v)
	default:
		return nil, objectdb.NewInvalidQuery("unsupported predicate node %T", n)
	}
}

// --- key path resolution ---------------------------------------------

// resolvedPath is the result of resolving a dotted key path against the
// schema: a possibly-empty hop chain, the final table it reaches, and
// (unless this is an aggregate/count path) the column read at that
// point.
type resolvedPath struct {
	hops      []linkmap.Hop
	table     objectdb.TableKey
	col       objectdb.ColKey
	def       objectdb.ColumnDef
	hasAgg    bool
	agg       expr.AggregateKind
	isCountSize bool
	sizeAlias bool // true when the suffix was @size rather than @count
}

func aggregateSuffix(s string) (expr.AggregateKind, bool) {
	switch s {
	case "@min":
		return expr.AggMin, true
	case "@max":
		return expr.AggMax, true
	case "@sum":
		return expr.AggSum, true
	case "@avg":
		return expr.AggAvg, true
	default:
		return 0, false
	}
}

func (b *Builder) columnByName(table objectdb.TableKey, name string) (objectdb.ColumnDef, error) {
	t, err := b.Table.Schema.TableByKey(table)
	if err != nil {
		return objectdb.ColumnDef{}, err
	}
	def, ok := t.Column(name)
	if !ok {
		return objectdb.ColumnDef{}, objectdb.NewInvalidQuery("unknown property %q on table %q", name, t.Name).WithColumn(name)
	}
	return def, nil
}

func hopKind(def objectdb.ColumnDef) (objectdb.LinkKind, error) {
	switch def.Kind {
	case objectdb.KindBacklink:
		return objectdb.LinkBacklink, nil
	case objectdb.KindLink:
		if def.Attrs.Has(objectdb.AttrList) {
			return objectdb.LinkList, nil
		}
		return objectdb.LinkSingle, nil
	default:
		return 0, objectdb.NewInvalidQuery("%q is not a link, list, or backlink column and cannot continue a key path", def.Name).WithColumn(def.Name)
	}
}

// resolvePath resolves every segment of path, peeling off a trailing
// @min/@max/@sum/@avg/@count/@size suffix if present.
func (b *Builder) resolvePath(path ast.KeyPath) (*resolvedPath, error) {
	segs := path.Segments
	if len(segs) == 0 {
		return nil, objectdb.NewInvalidQuery("empty key path")
	}
	last := segs[len(segs)-1]
	aggKind, isAgg := aggregateSuffix(last)
	isCountSize := last == "@count" || last == "@size"
	body := segs
	if isAgg || isCountSize {
		body = segs[:len(segs)-1]
		if len(body) == 0 {
			return nil, objectdb.NewInvalidQuery("%s requires a preceding property path", last)
		}
	}

	table := b.Table.Key
	var hops []linkmap.Hop
	// For @count/@size the final body segment names the link/list/
	// backlink column being counted, so it becomes a hop rather than a
	// plain tail column; for @min/@max/@sum/@avg and plain value reads
	// the final body segment is the tail column itself.
	countsLast := isCountSize
	for i, name := range body {
		def, err := b.columnByName(table, name)
		if err != nil {
			return nil, err
		}
		isLastBody := i == len(body)-1
		if isLastBody && !countsLast {
			return &resolvedPath{hops: hops, table: table, col: def.Key, def: def, hasAgg: isAgg, agg: aggKind, isCountSize: false}, nil
		}
		kind, err := hopKind(def)
		if err != nil {
			return nil, err
		}
		hops = append(hops, linkmap.Hop{Table: table, Col: def.Key, Kind: kind})
		if isLastBody && countsLast {
			return &resolvedPath{hops: hops, table: def.TargetTable, col: def.Key, def: def, isCountSize: true, sizeAlias: last == "@size"}, nil
		}
		table = def.TargetTable
	}
	return nil, objectdb.NewInvalidQuery("empty key path")
}

// --- literal/argument resolution --------------------------------------

func (b *Builder) resolveLiteral(lit ast.Literal, kind objectdb.ValueKind) (objectdb.Value, error) {
	if lit.Kind == ast.LitNull {
		return objectdb.NullValue(kind), nil
	}
	switch lit.Kind {
	case ast.LitInt:
		n, err := strconv.ParseInt(lit.Text, 0, 64)
		if err != nil {
			return objectdb.Value{}, objectdb.NewInvalidQuery("invalid integer literal %q", lit.Text)
		}
		return objectdb.IntValue(n), nil
	case ast.LitDouble:
		f, err := strconv.ParseFloat(lit.Text, 64)
		if err != nil {
			return objectdb.Value{}, objectdb.NewInvalidQuery("invalid numeric literal %q", lit.Text)
		}
		if kind == objectdb.KindFloat {
			return objectdb.FloatValue(float32(f)), nil
		}
		return objectdb.DoubleValue(f), nil
	case ast.LitString:
		return objectdb.StringValue(lit.Text), nil
	case ast.LitBool:
		return objectdb.BoolValue(strings.EqualFold(lit.Text, "true")), nil
	case ast.LitBinary:
		data, err := base64.StdEncoding.DecodeString(lit.Text)
		if err != nil {
			return objectdb.Value{}, objectdb.NewInvalidQuery("invalid B64 literal: %v", err)
		}
		return objectdb.BinaryValue(data), nil
	case ast.LitTimestamp:
		return parseTimestampLiteral(lit.Text)
	default:
		return objectdb.Value{}, objectdb.NewInvalidQuery("unsupported literal kind")
	}
}

func parseTimestampLiteral(text string) (objectdb.Value, error) {
	body := strings.TrimPrefix(text, "T")
	secPart, nsPart, _ := strings.Cut(body, ":")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return objectdb.Value{}, objectdb.NewInvalidQuery("invalid timestamp literal %q", text)
	}
	var ns int64
	if nsPart != "" {
		ns, err = strconv.ParseInt(nsPart, 10, 64)
		if err != nil {
			return objectdb.Value{}, objectdb.NewInvalidQuery("invalid timestamp literal %q", text)
		}
	}
	ts := objectdb.Timestamp{Seconds: sec, Nanoseconds: int32(ns)}
	if err := ts.Validate(); err != nil {
		return objectdb.Value{}, err
	}
	return objectdb.TimestampValue(ts), nil
}

// resolveRHSValue resolves a literal/arg RHS node to a scalar Value,
// rejecting key paths (which a caller wanting column-to-column
// comparisons must handle separately via buildRHSExpr).
func (b *Builder) resolveRHSValue(n ast.Node, kind objectdb.ValueKind) (objectdb.Value, error) {
	switch v := n.(type) {
	case ast.Literal:
		val, err := b.resolveLiteral(v, kind)
		if err != nil {
			return objectdb.Value{}, err
		}
		if n := len(val.Str()) + len(val.Bytes()); n > b.Config.Query.MaxStringLength {
			return objectdb.Value{}, objectdb.NewOutOfRange("literal of %d bytes exceeds the %d-byte string cap", n, b.Config.Query.MaxStringLength)
		}
		return val, nil
	case ast.ArgRef:
		if v.Index < 0 || v.Index >= len(b.Args) {
			return objectdb.Value{}, objectdb.NewMissingArgument(v.Index, len(b.Args))
		}
		return b.Args[v.Index], nil
	default:
		return objectdb.Value{}, objectdb.NewInvalidQuery("expected a literal or argument here")
	}
}

// --- generic expression building (chains, aggregates) ------------------

// buildPathExpr builds the Expr for a resolved path used as a value
// (not the boolean predicate itself): a plain column read, a link-chain
// tail read, or an aggregate/count fold.
func (b *Builder) buildPathExpr(rp *resolvedPath) (expr.Expr, error) {
	switch {
	case rp.isCountSize:
		chain := linkmap.New(rp.hops...)
		list := expr.NewKeyList(chain, b.Table.Objects, describeHops(rp.hops))
		kind := expr.AggCount
		if rp.sizeAlias {
			kind = expr.AggSize
		}
		return expr.NewAggregate(kind, list), nil
	case rp.hasAgg:
		chain := linkmap.New(rp.hops...)
		tail := expr.NewLinkPath(chain, rp.col, rp.def.Kind, b.Table.Objects, describeHops(rp.hops)+"."+rp.def.Name)
		return expr.NewAggregate(rp.agg, tail), nil
	case len(rp.hops) == 0:
		return expr.NewColumn(rp.col, rp.def.Name), nil
	default:
		chain := linkmap.New(rp.hops...)
		return expr.NewLinkPath(chain, rp.col, rp.def.Kind, b.Table.Objects, describeHops(rp.hops)+"."+rp.def.Name), nil
	}
}

func describeHops(hops []linkmap.Hop) string {
	var b strings.Builder
	for i, h := range hops {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString("$col")
		b.WriteString(strconv.Itoa(int(h.Col)))
	}
	return b.String()
}

func mapExprOp(op ast.CompareOp) (expr.CompareOp, bool) {
	switch op {
	case ast.OpEq:
		return expr.CmpEqual, true
	case ast.OpNeq:
		return expr.CmpNotEqual, true
	case ast.OpLt:
		return expr.CmpLess, true
	case ast.OpLte:
		return expr.CmpLessEqual, true
	case ast.OpGt:
		return expr.CmpGreater, true
	case ast.OpGte:
		return expr.CmpGreaterEqual, true
	default:
		return 0, false
	}
}

// --- comparison lowering ------------------------------------------------

// valueKindOf reports the scalar kind a resolved path ultimately
// produces, used to type-check/parse a literal RHS.
func (rp *resolvedPath) valueKind() objectdb.ValueKind {
	if rp.isCountSize {
		return objectdb.KindInt
	}
	if rp.hasAgg {
		switch rp.agg {
		case expr.AggSum, expr.AggAvg:
			return objectdb.KindDouble
		default:
			return rp.def.ElementKind
		}
	}
	return rp.def.Kind
}

func (b *Builder) buildComparison(c ast.Comparison) (condnode.Node, error) {
	rp, err := b.resolvePath(c.Left)
	if err != nil {
		return nil, err
	}

	// Column-to-column or otherwise expression-valued RHS always takes
	// the general expression path, since the specialized condnode
	// variants only accept a concrete literal operand.
	if rhsPath, ok := c.Right.(ast.KeyPath); ok {
		return b.buildGenericComparison(rp, c.Op, rhsPath)
	}

	if rp.hasAgg || (rp.isCountSize && len(rp.hops) > 1) {
		return b.buildAggregateComparison(rp, c)
	}

	if rp.isCountSize {
		return b.buildCountComparison(rp, c)
	}

	if len(rp.hops) > 0 {
		return b.buildChainValueComparison(rp, c)
	}

	return b.buildLocalComparison(rp, c)
}

// buildGenericComparison handles any comparison whose RHS is itself a
// key path (column-to-column), regardless of chain depth: both sides
// lower to expr.Expr and the result is wrapped as an ExpressionNode.
func (b *Builder) buildGenericComparison(leftPath *resolvedPath, op ast.CompareOp, rhsPath ast.KeyPath) (condnode.Node, error) {
	exprOp, ok := mapExprOp(op)
	if !ok {
		return nil, objectdb.NewUnsupported("operator not supported between two properties")
	}
	rightPath, err := b.resolvePath(rhsPath)
	if err != nil {
		return nil, err
	}
	leftExpr, err := b.buildPathExpr(leftPath)
	if err != nil {
		return nil, err
	}
	rightExpr, err := b.buildPathExpr(rightPath)
	if err != nil {
		return nil, err
	}
	cmp := expr.NewComparison(exprOp, leftExpr, rightExpr)
	return condnode.NewExpressionNode(cmp), nil
}

// buildAggregateComparison handles `<path>.@min|@max|@sum|@avg OP rhs`
// and chained `<path>.<link>.@count|@size OP rhs`.
func (b *Builder) buildAggregateComparison(rp *resolvedPath, c ast.Comparison) (condnode.Node, error) {
	exprOp, ok := mapExprOp(c.Op)
	if !ok {
		return nil, objectdb.NewUnsupported("%s does not support operator here", c.Left.Segments)
	}
	left, err := b.buildPathExpr(rp)
	if err != nil {
		return nil, err
	}
	val, err := b.resolveRHSValue(c.Right, rp.valueKind())
	if err != nil {
		return nil, err
	}
	right := expr.NewLiteral(val)
	cmp := expr.NewComparison(exprOp, left, right)
	return condnode.NewExpressionNode(cmp), nil
}

func mapCountCompareOp(op ast.CompareOp) (condnode.CompareOp, bool) {
	switch op {
	case ast.OpEq:
		return condnode.OpEqual, true
	case ast.OpNeq:
		return condnode.OpNotEqual, true
	case ast.OpLt:
		return condnode.OpLess, true
	case ast.OpLte:
		return condnode.OpLessEqual, true
	case ast.OpGt:
		return condnode.OpGreater, true
	case ast.OpGte:
		return condnode.OpGreaterEqual, true
	default:
		return 0, false
	}
}

// buildCountComparison handles `<column>.@count|@size OP N` where
// column is reached directly off the base table (no intervening
// chain), exercising the dedicated condnode.CountNode (§4.1).
func (b *Builder) buildCountComparison(rp *resolvedPath, c ast.Comparison) (condnode.Node, error) {
	op, ok := mapCountCompareOp(c.Op)
	if !ok {
		return nil, objectdb.NewUnsupported("@count/@size only supports comparison operators")
	}
	val, err := b.resolveRHSValue(c.Right, objectdb.KindInt)
	if err != nil {
		return nil, err
	}
	var kind condnode.CountKind
	switch {
	case rp.def.Kind == objectdb.KindBacklink:
		kind = condnode.CountBacklink
	case rp.def.Attrs.Has(objectdb.AttrList):
		kind = condnode.CountList
	default:
		kind = condnode.CountLink
	}
	return condnode.NewCountNode(rp.col, kind, op, val.Int(), b.Table.Objects), nil
}

// buildChainValueComparison handles a non-aggregate read through a link
// chain, e.g. `owner.name == "Ana"` (the implicit ANY semantics over a
// non-unary chain come from expr.LinkPathExpr yielding a list, which
// expr.ComparisonExpr compares element by element).
func (b *Builder) buildChainValueComparison(rp *resolvedPath, c ast.Comparison) (condnode.Node, error) {
	left, err := b.buildPathExpr(rp)
	if err != nil {
		return nil, err
	}
	exprOp, ok := mapExprOp(c.Op)
	if !ok {
		return nil, objectdb.NewUnsupported("string pattern operators are not supported across a link chain")
	}
	val, err := b.resolveRHSValue(c.Right, rp.valueKind())
	if err != nil {
		return nil, err
	}
	cmp := expr.NewComparison(exprOp, left, expr.NewLiteral(val))
	return condnode.NewExpressionNode(cmp), nil
}

// buildLocalComparison handles the common case: a scalar or string
// column on the base table compared against a literal/argument,
// dispatching to the specialized condnode variant for its kind/op
// (§4.1).
func (b *Builder) buildLocalComparison(rp *resolvedPath, c ast.Comparison) (condnode.Node, error) {
	def := rp.def
	switch def.Kind {
	case objectdb.KindString:
		return b.buildStringComparison(rp, c)
	case objectdb.KindBinary:
		return b.buildBinaryComparison(rp, c)
	default:
		val, err := b.resolveRHSValue(c.Right, def.Kind)
		if err != nil {
			return nil, err
		}
		op, ok := mapCountCompareOp(c.Op)
		if !ok {
			return nil, objectdb.NewUnsupported("operator not supported for %s columns", def.Kind)
		}
		return condnode.NewCompareNode(rp.col, op, val, b.Config.Index.UnindexedDT), nil
	}
}

func (b *Builder) stringCosts() condnode.StringCosts {
	return condnode.StringCosts{
		IndexedDT:   b.Config.Index.IndexedDT,
		EnumDT:      b.Config.Index.EnumDT,
		UnindexedDT: b.Config.Index.UnindexedDT,
	}
}

func (b *Builder) indexFor(col objectdb.ColKey) objectdb.Index {
	if b.Indexes == nil {
		return nil
	}
	return b.Indexes.Index(b.Table.Key, col)
}

func (b *Builder) buildStringComparison(rp *resolvedPath, c ast.Comparison) (condnode.Node, error) {
	def := rp.def
	switch c.Op {
	case ast.OpEq, ast.OpNeq:
		val, err := b.resolveRHSValue(c.Right, objectdb.KindString)
		if err != nil {
			return nil, err
		}
		var eq condnode.Node
		if c.CaseInsensitive {
			eq = &condnode.StringEqualInsNode{Col: rp.col, Needle: val.Str(), Index: b.indexFor(rp.col), Costs: b.stringCosts()}
		} else {
			eq = &condnode.StringEqualNode{Col: rp.col, Needle: val.Str(), IsEnumCol: def.Attrs.Has(objectdb.AttrStringEnum), Index: b.indexFor(rp.col), CostConfig: b.stringCosts()}
		}
		if val.Null {
			// Equality against a null literal degrades to the generic
			// null-aware CompareNode rather than the string index path.
			op := condnode.OpEqual
			if c.Op == ast.OpNeq {
				op = condnode.OpNotEqual
			}
			return condnode.NewCompareNode(rp.col, op, val, b.Config.Index.UnindexedDT), nil
		}
		if c.Op == ast.OpNeq {
			return condnode.NewNotNode(eq), nil
		}
		return eq, nil
	case ast.OpContains, ast.OpBeginsWith, ast.OpEndsWith, ast.OpLike:
		val, err := b.resolveRHSValue(c.Right, objectdb.KindString)
		if err != nil {
			return nil, err
		}
		return &condnode.StringMatchNode{
			Col:             rp.col,
			Op:              mapMatchOp(c.Op),
			Pattern:         val.Str(),
			CaseInsensitive: c.CaseInsensitive,
			UnindexedDT:     b.Config.Index.UnindexedDT,
		}, nil
	default:
		val, err := b.resolveRHSValue(c.Right, objectdb.KindString)
		if err != nil {
			return nil, err
		}
		op, ok := mapCountCompareOp(c.Op)
		if !ok {
			return nil, objectdb.NewUnsupported("unsupported string operator")
		}
		return condnode.NewCompareNode(rp.col, op, val, b.Config.Index.UnindexedDT), nil
	}
}

func (b *Builder) buildBinaryComparison(rp *resolvedPath, c ast.Comparison) (condnode.Node, error) {
	switch c.Op {
	case ast.OpContains, ast.OpBeginsWith, ast.OpEndsWith, ast.OpLike:
		val, err := b.resolveRHSValue(c.Right, objectdb.KindBinary)
		if err != nil {
			return nil, err
		}
		return &condnode.BinaryMatchNode{
			Col:             rp.col,
			Op:              mapMatchOp(c.Op),
			Pattern:         val.Bytes(),
			CaseInsensitive: c.CaseInsensitive,
			UnindexedDT:     b.Config.Index.UnindexedDT,
		}, nil
	default:
		val, err := b.resolveRHSValue(c.Right, objectdb.KindBinary)
		if err != nil {
			return nil, err
		}
		op, ok := mapCountCompareOp(c.Op)
		if !ok {
			return nil, objectdb.NewUnsupported("unsupported binary operator")
		}
		return condnode.NewCompareNode(rp.col, op, val, b.Config.Index.UnindexedDT), nil
	}
}

func mapMatchOp(op ast.CompareOp) condnode.MatchOp {
	switch op {
	case ast.OpContains:
		return condnode.MatchContains
	case ast.OpBeginsWith:
		return condnode.MatchBeginsWith
	case ast.OpEndsWith:
		return condnode.MatchEndsWith
	default:
		return condnode.MatchLike
	}
}

// --- IN lowering (§4.1.2 multi-needle fusion) ---------------------------

// buildEqualOrChain detects an OR-chain of plain `col == literal`
// comparisons on one single-segment column (§4.1.2, §8: "a == '0' or
// a == '1' or a == '2' ..." must compile the same as `a IN (...)`) and
// routes it through buildInList so it gets the same needle-fusion
// treatment as literal IN syntax. ok is false for anything else —
// mixed columns, a non-Equal operator, a case-insensitive comparison,
// or a column-to-column RHS — and the caller falls back to nested
// DisjunctionNodes.
func (b *Builder) buildEqualOrChain(n ast.Node) (condnode.Node, bool, error) {
	items, ok := flattenEqualOr(n)
	if !ok || len(items) < 2 {
		return nil, false, nil
	}
	path := items[0].Left
	for _, c := range items[1:] {
		if !samePath(c.Left, path) {
			return nil, false, nil
		}
	}
	in := ast.InList{Left: path, Items: make([]ast.Node, len(items))}
	for i, c := range items {
		in.Items[i] = c.Right
	}
	node, err := b.buildInList(in)
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

// flattenEqualOr walks a chain of LogicOr nodes, collecting every leaf
// as an ast.Comparison iff every leaf is a plain `==` comparison with a
// literal/arg RHS. Any other shape (AND, NOT, a non-Equal operator, a
// case-insensitive flag, a key-path RHS) reports ok=false.
func flattenEqualOr(n ast.Node) ([]ast.Comparison, bool) {
	switch v := n.(type) {
	case ast.Logical:
		if v.Op != ast.LogicOr {
			return nil, false
		}
		left, ok := flattenEqualOr(v.Left)
		if !ok {
			return nil, false
		}
		right, ok := flattenEqualOr(v.Right)
		if !ok {
			return nil, false
		}
		return append(left, right...), true
	case ast.Comparison:
		if v.Op != ast.OpEq || v.CaseInsensitive {
			return nil, false
		}
		if _, isPath := v.Right.(ast.KeyPath); isPath {
			return nil, false
		}
		return []ast.Comparison{v}, true
	default:
		return nil, false
	}
}

// samePath reports whether two key paths name the same dotted segment
// chain.
func samePath(a, b ast.KeyPath) bool {
	if len(a.Segments) != len(b.Segments) {
		return false
	}
	for i := range a.Segments {
		if a.Segments[i] != b.Segments[i] {
			return false
		}
	}
	return true
}

func (b *Builder) buildInList(in ast.InList) (condnode.Node, error) {
	rp, err := b.resolvePath(in.Left)
	if err != nil {
		return nil, err
	}
	if rp.def.Kind != objectdb.KindString || len(rp.hops) > 0 || rp.hasAgg {
		// Non-string or non-local IN falls back to a disjunction of
		// individual Equal comparisons; needle fusion (§4.1.2) only
		// applies to a local string-equality column.
		children := make([]condnode.Node, len(in.Items))
		for i, item := range in.Items {
			cmp := ast.Comparison{Left: in.Left, Op: ast.OpEq, Right: item}
			n, err := b.buildComparison(cmp)
			if err != nil {
				return nil, err
			}
			children[i] = n
		}
		return querytree.NewDisjunction(children...), nil
	}
	if len(in.Items) < b.Config.Index.FusionMinNeedles {
		children := make([]condnode.Node, len(in.Items))
		for i, item := range in.Items {
			val, err := b.resolveRHSValue(item, objectdb.KindString)
			if err != nil {
				return nil, err
			}
			children[i] = &condnode.StringEqualNode{Col: rp.col, Needle: val.Str(), IsEnumCol: rp.def.Attrs.Has(objectdb.AttrStringEnum), Index: b.indexFor(rp.col), CostConfig: b.stringCosts()}
		}
		return querytree.NewDisjunction(children...), nil
	}
	needles := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		val, err := b.resolveRHSValue(item, objectdb.KindString)
		if err != nil {
			return nil, err
		}
		needles = append(needles, val.Str())
	}
	return condnode.NewNeedleNode(rp.col, needles, b.Config.Index.FusionBlockSize, b.Config.Index.UnindexedDT), nil
}

// --- quantifiers and SUBQUERY -------------------------------------------

// buildElementPredicate compiles a single-property comparison against
// an element's own table into an expr.ElementPredicate, used by ANY/
// ALL/NONE and SUBQUERY (§4.2: these never reference the outer row).
func (b *Builder) buildElementPredicate(table objectdb.TableKey, comp ast.Comparison) (expr.ElementPredicate, error) {
	if len(comp.Left.Segments) != 1 {
		return nil, objectdb.NewInvalidQuery("quantifier/subquery predicate must reference a single element property")
	}
	propName := comp.Left.Segments[0]
	def, err := b.columnByName(table, propName)
	if err != nil {
		return nil, err
	}
	val, err := b.resolveRHSValue(comp.Right, def.Kind)
	if err != nil {
		return nil, err
	}
	op := comp.Op
	caseInsensitive := comp.CaseInsensitive
	objects := b.Table.Objects
	col := def.Key

	return func(ctx context.Context, key objectdb.ObjKey) (bool, error) {
		obj, err := objects.Resolve(ctx, table, key)
		if err != nil {
			return false, err
		}
		v, err := obj.Get(col)
		if err != nil {
			return false, err
		}
		return evaluateElementOp(v, op, val, caseInsensitive)
	}, nil
}

func evaluateElementOp(v objectdb.Value, op ast.CompareOp, operand objectdb.Value, caseInsensitive bool) (bool, error) {
	switch op {
	case ast.OpContains, ast.OpBeginsWith, ast.OpEndsWith, ast.OpLike:
		if v.Null {
			return false, nil
		}
		s, operandStr := v.Str(), operand.Str()
		if caseInsensitive {
			s, operandStr = strings.ToLower(s), strings.ToLower(operandStr)
		}
		switch op {
		case ast.OpContains:
			return strings.Contains(s, operandStr), nil
		case ast.OpBeginsWith:
			return strings.HasPrefix(s, operandStr), nil
		case ast.OpEndsWith:
			return strings.HasSuffix(s, operandStr), nil
		default:
			return likeMatch(s, operandStr), nil
		}
	default:
		if v.Null || operand.Null {
			switch op {
			case ast.OpEq:
				return v.Null && operand.Null, nil
			case ast.OpNeq:
				return v.Null != operand.Null, nil
			default:
				return false, nil
			}
		}
		if caseInsensitive && v.Kind == objectdb.KindString {
			v = objectdb.StringValue(strings.ToLower(v.Str()))
			operand = objectdb.StringValue(strings.ToLower(operand.Str()))
		}
		cmp := v.Compare(operand)
		switch op {
		case ast.OpEq:
			return cmp == 0, nil
		case ast.OpNeq:
			return cmp != 0, nil
		case ast.OpLt:
			return cmp < 0, nil
		case ast.OpLte:
			return cmp <= 0, nil
		case ast.OpGt:
			return cmp > 0, nil
		case ast.OpGte:
			return cmp >= 0, nil
		default:
			return false, nil
		}
	}
}

// likeMatch mirrors condnode's `?`/`*` glob algorithm for element
// predicates, which run outside the condnode/Leaf scan path.
func likeMatch(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	si, pi := 0, 0
	star, match := -1, 0
	for si < len(sr) {
		switch {
		case pi < len(pr) && (pr[pi] == '?' || pr[pi] == sr[si]):
			si++
			pi++
		case pi < len(pr) && pr[pi] == '*':
			star, match = pi, si
			pi++
		case star != -1:
			pi = star + 1
			match++
			si = match
		default:
			return false
		}
	}
	for pi < len(pr) && pr[pi] == '*' {
		pi++
	}
	return pi == len(pr)
}

func (b *Builder) resolveListPath(path ast.KeyPath) (*resolvedPath, error) {
	rp, err := b.resolvePath(path)
	if err != nil {
		return nil, err
	}
	kind, hopErr := hopKind(rp.def)
	if hopErr != nil {
		return nil, objectdb.NewInvalidQuery("quantifier/SUBQUERY path must end in a link, list, or backlink column")
	}
	rp.hops = append(rp.hops, linkmap.Hop{Table: rp.table, Col: rp.col, Kind: kind})
	rp.table = rp.def.TargetTable
	return rp, nil
}

func (b *Builder) buildQuantified(q ast.Quantified) (condnode.Node, error) {
	rp, err := b.resolveListPath(q.List)
	if err != nil {
		return nil, err
	}
	cmp, ok := q.Predicate.(ast.Comparison)
	if !ok {
		return nil, objectdb.NewInvalidQuery("quantifier predicate must be a comparison")
	}
	predicate, err := b.buildElementPredicate(rp.table, cmp)
	if err != nil {
		return nil, err
	}
	chain := linkmap.New(rp.hops...)
	list := expr.NewKeyList(chain, b.Table.Objects, describeHops(rp.hops))
	var kind expr.QuantifierKind
	switch q.Kind {
	case ast.QAny:
		kind = expr.QuantAny
	case ast.QAll:
		kind = expr.QuantAll
	case ast.QNone:
		kind = expr.QuantNone
	}
	qe := expr.NewQuantifier(kind, list, predicate)
	return condnode.NewExpressionNode(qe), nil
}

// buildSubqueryPredicate lowers a bare `SUBQUERY(...).@count`/`.@size`
// used directly as a predicate (no explicit comparison) to "at least
// one element satisfies the inner predicate" — documented in DESIGN.md
// as the chosen reading of a comparison-less SUBQUERY term.
func (b *Builder) buildSubqueryPredicate(sq ast.Subquery) (condnode.Node, error) {
	rp, err := b.resolveListPath(sq.List)
	if err != nil {
		return nil, err
	}
	cmp, ok := sq.Predicate.(ast.Comparison)
	if !ok {
		return nil, objectdb.NewUnsupported("SUBQUERY predicate must be a single comparison in this build")
	}
	predicate, err := b.buildElementPredicate(rp.table, cmp)
	if err != nil {
		return nil, err
	}
	chain := linkmap.New(rp.hops...)
	list := expr.NewKeyList(chain, b.Table.Objects, describeHops(rp.hops))
	sub := expr.NewSubquery(list, predicate)
	sub.Size = sq.Size
	zero := expr.NewLiteral(objectdb.IntValue(0))
	gt := expr.NewComparison(expr.CmpGreater, sub, zero)
	return condnode.NewExpressionNode(gt), nil
}

// --- descriptors ---------------------------------------------------------

func (b *Builder) buildDescriptor(n ast.Node) (ordering.Descriptor, error) {
	switch v := n.(type) {
	case ast.SortDescriptor:
		keys := make([]ordering.SortKey, len(v.Keys))
		for i, k := range v.Keys {
			rp, err := b.resolvePath(k.Path)
			if err != nil {
				return nil, err
			}
			dir := objectdb.Ascending
			if k.Desc {
				dir = objectdb.Descending
			}
			keys[i] = ordering.SortKey{Col: rp.col, Dir: dir}
		}
		return ordering.Sort(keys...), nil
	case ast.DistinctDescriptor:
		keys := make([]objectdb.ColKey, len(v.Keys))
		for i, p := range v.Keys {
			rp, err := b.resolvePath(p)
			if err != nil {
				return nil, err
			}
			keys[i] = rp.col
		}
		return ordering.Distinct(keys...), nil
	case ast.LimitDescriptor:
		return ordering.Limit(v.N), nil
	case ast.IncludeDescriptor:
		paths := make([]*linkmap.LinkMap, len(v.Paths))
		for i, p := range v.Paths {
			rp, err := b.resolveListPath(p)
			if err != nil {
				return nil, err
			}
			paths[i] = linkmap.New(rp.hops...)
		}
		return ordering.Include(b.Table.Objects, paths...)
	default:
		return nil, objectdb.NewInvalidQuery("unsupported descriptor node %T", n)
	}
}
