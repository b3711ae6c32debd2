// Package linkmap implements the link map (C5): a chain of single/list/
// backlink hops evaluated against an ObjectSource, producing the set of
// target keys reachable from a starting object (§4.3).
package linkmap

import (
	"context"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal"
)

// Hop is one link in the chain: which table/column to read, and how
// (single forward link, list of forward links, or backlink).
type Hop struct {
	Table objectdb.TableKey
	Col   objectdb.ColKey
	Kind  objectdb.LinkKind
}

// LinkMap is an ordered sequence of hops (§3). Each hop's Table is the
// table the *previous* hop's keys live in (the first hop's Table is the
// query's base table).
type LinkMap struct {
	Hops []Hop
}

func New(hops ...Hop) *LinkMap { return &LinkMap{Hops: hops} }

// stopWalk is returned by visitor-driven recursion to unwind early without
// treating early termination as an error.
type stopWalk struct{}

func (stopWalk) Error() string { return "linkmap: walk stopped" }

// MapLinks traverses the chain starting at startKey, invoking visitor
// for every terminal key reached after the final hop. Returning false
// from visitor terminates traversal immediately (§4.3).
func (m *LinkMap) MapLinks(ctx context.Context, objects objectdb.ObjectSource, startKey objectdb.ObjKey, visitor func(objectdb.ObjKey) bool) error {
	if len(m.Hops) == 0 {
		if !visitor(startKey) {
			return nil
		}
		return nil
	}
	err := m.walk(ctx, objects, 0, startKey, visitor)
	if _, ok := err.(stopWalk); ok {
		return nil
	}
	return err
}

func (m *LinkMap) walk(ctx context.Context, objects objectdb.ObjectSource, hopIdx int, key objectdb.ObjKey, visitor func(objectdb.ObjKey) bool) error {
	hop := m.Hops[hopIdx]
	obj, err := objects.Resolve(ctx, hop.Table, key)
	if err != nil {
		return err
	}

	var next []objectdb.ObjKey
	switch hop.Kind {
	case objectdb.LinkSingle:
		v, err := obj.Get(hop.Col)
		if err != nil {
			return err
		}
		if !v.Null {
			next = []objectdb.ObjKey{v.Link()}
		}
	case objectdb.LinkList:
		v, err := obj.Get(hop.Col)
		if err != nil {
			return err
		}
		if !v.Null {
			for _, elem := range v.Elems() {
				next = append(next, elem.Link())
			}
		}
	case objectdb.LinkBacklink:
		keys, err := obj.GetBacklinks(hop.Col)
		if err != nil {
			return err
		}
		next = keys
	}

	last := hopIdx == len(m.Hops)-1
	for _, k := range next {
		if last {
			if !visitor(k) {
				return stopWalk{}
			}
			continue
		}
		if err := m.walk(ctx, objects, hopIdx+1, k, visitor); err != nil {
			return err
		}
	}
	return nil
}

// CollectDependencies returns every distinct table key participating in
// the chain (the base table of each hop), used to decide which table
// versions a bound query must observe (§4.3).
func (m *LinkMap) CollectDependencies() []objectdb.TableKey {
	set := internal.NewSet[objectdb.TableKey]()
	for _, hop := range m.Hops {
		set.Add(hop.Table)
	}
	return set.ToSlice()
}

// NonUnary reports whether any hop in the chain is list- or
// backlink-valued, i.e. can fan out to more than one key (§3: "records
// whether any hop is non-unary").
func (m *LinkMap) NonUnary() bool {
	for _, hop := range m.Hops {
		if hop.Kind != objectdb.LinkSingle {
			return true
		}
	}
	return false
}
