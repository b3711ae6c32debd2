package querytree

import (
	"context"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
)

// Tree binds a root condition node to a table's storage and walks
// clusters ascending, translating cluster-local rows into ObjKeys
// (§4, data flow: "executor walks clusters (C1), calling
// find_first_local on each node, intersecting matches (C3)").
type Tree struct {
	Root    condnode.Node
	Storage objectdb.Storage
	Table   objectdb.TableKey
}

func New(root condnode.Node, storage objectdb.Storage, table objectdb.TableKey) *Tree {
	return &Tree{Root: root, Storage: storage, Table: table}
}

// Bind runs Init + TableChanged once, before any cluster walk.
func (t *Tree) Bind(willQueryRanges bool) error {
	if err := t.Root.Init(willQueryRanges); err != nil {
		return err
	}
	return t.Root.TableChanged(t.Table)
}

// walk invokes visit(cluster, firstRow) for every cluster in ascending
// order, stopping early (without error) when visit returns false.
func (t *Tree) walk(ctx context.Context, visit func(cluster objectdb.Cluster) (bool, error)) error {
	iter, err := t.Storage.Clusters(ctx, t.Table)
	if err != nil {
		return objectdb.NewIOError(err)
	}
	defer iter.Close()
	for {
		cluster, ok, err := iter.Next(ctx)
		if err != nil {
			return objectdb.NewIOError(err)
		}
		if !ok {
			return nil
		}
		if err := t.Root.ClusterChanged(cluster); err != nil {
			return err
		}
		cont, err := visit(cluster)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// FindFirst returns the first ObjKey anywhere in the table satisfying
// the tree, or (0,false,nil) if none does.
func (t *Tree) FindFirst(ctx context.Context) (objectdb.ObjKey, bool, error) {
	var found objectdb.ObjKey
	var ok bool
	err := t.walk(ctx, func(cluster objectdb.Cluster) (bool, error) {
		row, err := t.Root.FindFirstLocal(0, cluster.Size())
		if err != nil {
			return false, err
		}
		if row == objectdb.NotFound {
			return true, nil
		}
		key, err := cluster.GetRealKey(row)
		if err != nil {
			return false, err
		}
		found, ok = key, true
		return false, nil
	})
	return found, ok, err
}

// FindAll materialises every matching ObjKey in ascending order.
func (t *Tree) FindAll(ctx context.Context) ([]objectdb.ObjKey, error) {
	var out []objectdb.ObjKey
	err := t.walk(ctx, func(cluster objectdb.Cluster) (bool, error) {
		size := cluster.Size()
		row := 0
		for row < size {
			m, err := t.Root.FindFirstLocal(row, size)
			if err != nil {
				return false, err
			}
			if m == objectdb.NotFound {
				break
			}
			key, err := cluster.GetRealKey(m)
			if err != nil {
				return false, err
			}
			out = append(out, key)
			row = m + 1
		}
		return true, nil
	})
	return out, err
}

// Count returns the number of matching rows without materialising keys.
func (t *Tree) Count(ctx context.Context) (int64, error) {
	var n int64
	err := t.walk(ctx, func(cluster objectdb.Cluster) (bool, error) {
		size := cluster.Size()
		row := 0
		for row < size {
			m, err := t.Root.FindFirstLocal(row, size)
			if err != nil {
				return false, err
			}
			if m == objectdb.NotFound {
				break
			}
			n++
			row = m + 1
		}
		return true, nil
	})
	return n, err
}

// Describe renders the tree's root as the textual predicate it was
// built from (§6).
func (t *Tree) Describe(state *condnode.DescribeState) string {
	return t.Root.Describe(state)
}
