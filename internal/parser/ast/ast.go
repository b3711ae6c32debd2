// Package ast defines the predicate DSL's parse tree (§4.5), the shape
// internal/parser/parser.go builds and internal/parser/builder.go lowers
// into condnode/expr/querytree trees.
package ast

// Node is the common interface every AST node implements purely to be
// walkable/printable; lowering type-switches on the concrete type.
type Node interface{ node() }

// KeyPath is a dotted identifier chain, possibly containing an
// `@links.<Class>.<prop>` backlink segment (§4.5).
type KeyPath struct {
	Segments []string
}

func (KeyPath) node() {}

// Literal is any literal value token, tagged with its surface kind so
// the builder can type-check against the resolved column (§4.5).
type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitDouble
	LitString
	LitBool
	LitNull
	LitTimestamp
	LitBinary
)

type Literal struct {
	Kind LiteralKind
	Text string // raw lexeme, parsed by the builder against the target type
}

func (Literal) node() {}

// ArgRef is a `$N` argument placeholder (§4.5).
type ArgRef struct{ Index int }

func (ArgRef) node() {}

// CompareOp mirrors the DSL's comparison operator set, including the
// `[c]` case-insensitive suffix flag (§4.5).
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpContains
	OpBeginsWith
	OpEndsWith
	OpLike
)

// Comparison is `left OP right`, where left is always a KeyPath and
// right is a Literal, ArgRef, or another KeyPath.
type Comparison struct {
	Left            KeyPath
	Op              CompareOp
	Right           Node
	CaseInsensitive bool
}

func (Comparison) node() {}

// InList is `keypath IN (lit1, lit2, ...)`.
type InList struct {
	Left  KeyPath
	Items []Node
}

func (InList) node() {}

// LogicalOp combines two predicates with AND/OR.
type LogicalOp uint8

const (
	LogicAnd LogicalOp = iota
	LogicOr
)

type Logical struct {
	Op          LogicalOp
	Left, Right Node
}

func (Logical) node() {}

// Not negates a predicate (§4.5's NOT/!).
type Not struct{ Inner Node }

func (Not) node() {}

// QuantifierKind mirrors ANY/SOME/ALL/NONE (§4.5).
type QuantifierKind uint8

const (
	QAny QuantifierKind = iota
	QAll
	QNone
)

// Quantified applies a quantifier to a list-valued key path compared
// against a nested predicate over its elements.
type Quantified struct {
	Kind      QuantifierKind
	List      KeyPath
	Predicate Node
}

func (Quantified) node() {}

// Subquery is `SUBQUERY(list, $var, predicate).@count`/`.@size`.
type Subquery struct {
	List      KeyPath
	Var       string
	Predicate Node
	Size      bool
}

func (Subquery) node() {}

// AggregateKind mirrors @min/@max/@sum/@avg/@count/@size suffixes.
type AggregateKind uint8

const (
	AggMin AggregateKind = iota
	AggMax
	AggSum
	AggAvg
	AggCount
	AggSize
)

// Aggregate applies an aggregate suffix to a key path.
type Aggregate struct {
	Path KeyPath
	Kind AggregateKind
}

func (Aggregate) node() {}

// TruePredicate / FalsePredicate are the DSL's constant predicates.
type TruePredicate struct{}

func (TruePredicate) node() {}

type FalsePredicate struct{}

func (FalsePredicate) node() {}

// Descriptor suffixes (§4.4, §4.5).
type SortKey struct {
	Path KeyPath
	Desc bool
}

type SortDescriptor struct{ Keys []SortKey }

func (SortDescriptor) node() {}

type DistinctDescriptor struct{ Keys []KeyPath }

func (DistinctDescriptor) node() {}

type LimitDescriptor struct{ N int }

func (LimitDescriptor) node() {}

type IncludeDescriptor struct{ Paths []KeyPath }

func (IncludeDescriptor) node() {}

// Query is a parsed predicate plus its trailing descriptor suffixes, in
// the order they appeared (§4.4: "Order matters and is preserved
// verbatim.").
type Query struct {
	Predicate   Node
	Descriptors []Node
}
