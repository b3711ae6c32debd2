package expr

import (
	"context"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/linkmap"
)

// KeyListExpr evaluates a link-map chain to the list of terminal
// ObjKeys it reaches (as opposed to LinkPathExpr, which reads a tail
// column off each). It backs quantifiers and SUBQUERY, both of which
// need the linked objects' own keys rather than one of their
// properties (§4.2, §4.5).
type KeyListExpr struct {
	Chain   *linkmap.LinkMap
	Objects objectdb.ObjectSource
	Name    string

	cluster objectdb.Cluster
}

func NewKeyList(chain *linkmap.LinkMap, objects objectdb.ObjectSource, name string) *KeyListExpr {
	return &KeyListExpr{Chain: chain, Objects: objects, Name: name}
}

func (e *KeyListExpr) SetBaseTable(table objectdb.TableKey) error { return nil }
func (e *KeyListExpr) SetCluster(cluster objectdb.Cluster) error  { e.cluster = cluster; return nil }

func (e *KeyListExpr) Evaluate(row int) (objectdb.Value, error) {
	startKey, err := e.cluster.GetRealKey(row)
	if err != nil {
		return objectdb.Value{}, err
	}
	var keys []objectdb.Value
	err = e.Chain.MapLinks(context.Background(), e.Objects, startKey, func(k objectdb.ObjKey) bool {
		keys = append(keys, objectdb.LinkValue(k))
		return true
	})
	if err != nil {
		return objectdb.Value{}, err
	}
	return objectdb.ListValue(objectdb.KindLink, keys), nil
}

func (e *KeyListExpr) Describe() string { return e.Name }

// QuantifierKind enumerates ANY/SOME, ALL, NONE (§4.2).
type QuantifierKind uint8

const (
	QuantAny QuantifierKind = iota
	QuantAll
	QuantNone
)

func (k QuantifierKind) String() string {
	switch k {
	case QuantAny:
		return "ANY"
	case QuantAll:
		return "ALL"
	case QuantNone:
		return "NONE"
	default:
		return "?"
	}
}

// ElementPredicate tests one element key, resolving its own Object to
// evaluate a predicate compiled against the element's table.
type ElementPredicate func(ctx context.Context, key objectdb.ObjKey) (bool, error)

// QuantifierExpr evaluates a quantifier over a KeyListExpr's list. ANY
// is implicit whenever a list-valued path is compared against a scalar
// (ComparisonExpr applies it to a list operand itself, so the builder
// builds no QuantifierExpr in that case); ALL/NONE
// are spelled out explicitly by the caller (§4.2: "compiled as a
// subquery + emptiness test because they cannot reference the outer
// row" — here expressed directly as an element-predicate fold, which is
// semantically equivalent when the predicate only references the
// element's own properties, the only case the grammar allows).
type QuantifierExpr struct {
	Kind      QuantifierKind
	List      *KeyListExpr
	Predicate ElementPredicate
}

func NewQuantifier(kind QuantifierKind, list *KeyListExpr, predicate ElementPredicate) *QuantifierExpr {
	return &QuantifierExpr{Kind: kind, List: list, Predicate: predicate}
}

func (e *QuantifierExpr) SetBaseTable(table objectdb.TableKey) error {
	return e.List.SetBaseTable(table)
}
func (e *QuantifierExpr) SetCluster(cluster objectdb.Cluster) error {
	return e.List.SetCluster(cluster)
}

func (e *QuantifierExpr) Evaluate(row int) (objectdb.Value, error) {
	ok, err := e.EvaluateBool(row)
	if err != nil {
		return objectdb.Value{}, err
	}
	return objectdb.BoolValue(ok), nil
}

func (e *QuantifierExpr) EvaluateBool(row int) (bool, error) {
	listVal, err := e.List.Evaluate(row)
	if err != nil {
		return false, err
	}
	elems := listVal.Elems()
	if len(elems) == 0 {
		// ANY/SOME over an empty list is false; ALL over an empty list
		// is vacuously true; NONE over an empty list is true.
		return e.Kind != QuantAny, nil
	}
	matches := 0
	for _, elem := range elems {
		ok, err := e.Predicate(context.Background(), elem.Link())
		if err != nil {
			return false, err
		}
		if ok {
			matches++
		}
	}
	switch e.Kind {
	case QuantAny:
		return matches > 0, nil
	case QuantAll:
		return matches == len(elems), nil
	case QuantNone:
		return matches == 0, nil
	default:
		return false, nil
	}
}

func (e *QuantifierExpr) Describe() string {
	return e.Kind.String() + "(" + e.List.Describe() + ")"
}

// SubqueryExpr implements `SUBQUERY(list, $var, predicate).@count`/
// `.@size` (§4.2, §4.5): count how many elements of List satisfy
// Predicate. The builder compiles Predicate from a single comparison on
// an element property; it does not track the $var name and does not
// build nested subqueries.
type SubqueryExpr struct {
	List      *KeyListExpr
	Predicate ElementPredicate
	Size      bool // true selects .@size (identical to .@count for SUBQUERY)
}

func NewSubquery(list *KeyListExpr, predicate ElementPredicate) *SubqueryExpr {
	return &SubqueryExpr{List: list, Predicate: predicate}
}

func (e *SubqueryExpr) SetBaseTable(table objectdb.TableKey) error { return e.List.SetBaseTable(table) }
func (e *SubqueryExpr) SetCluster(cluster objectdb.Cluster) error  { return e.List.SetCluster(cluster) }

func (e *SubqueryExpr) Evaluate(row int) (objectdb.Value, error) {
	listVal, err := e.List.Evaluate(row)
	if err != nil {
		return objectdb.Value{}, err
	}
	var count int64
	for _, elem := range listVal.Elems() {
		ok, err := e.Predicate(context.Background(), elem.Link())
		if err != nil {
			return objectdb.Value{}, err
		}
		if ok {
			count++
		}
	}
	return objectdb.IntValue(count), nil
}

func (e *SubqueryExpr) Describe() string {
	suffix := "@count"
	if e.Size {
		suffix = "@size"
	}
	return "SUBQUERY(" + e.List.Describe() + ", $x, ...)." + suffix
}
