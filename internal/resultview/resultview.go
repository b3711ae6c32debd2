// Package resultview implements the result view (C8): a materialized
// key sequence produced by a query, plus the bookkeeping needed to
// apply a descriptor ordering to it and detect when the underlying
// storage snapshot it was built against has moved on (§5).
package resultview

import (
	"context"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/ordering"
)

// VersionedStorage is the narrow capability ResultView needs beyond
// objectdb.Storage to detect a stale snapshot: a monotonically
// increasing version number for a table, bumped whenever its clusters
// change (§5: "a result view observes a single storage version for its
// lifetime unless explicitly re-synced").
type VersionedStorage interface {
	objectdb.Storage
	Version(ctx context.Context, table objectdb.TableKey) (uint64, error)
}

// ResultView is the materialized, ordered key sequence a query produces
// (§4.4, §6). It remembers the storage version it was built against so
// SyncIfNeeded can tell a caller whether to rebuild.
type ResultView struct {
	table   objectdb.TableKey
	storage VersionedStorage
	keys    []objectdb.ObjKey
	version uint64
	limit   *ordering.LimitDescriptor
}

// New wraps an already-materialized key slice observed at the given
// storage version.
func New(table objectdb.TableKey, storage VersionedStorage, keys []objectdb.ObjKey, version uint64) *ResultView {
	return &ResultView{table: table, storage: storage, keys: keys, version: version}
}

// Size reports the number of rows in the view.
func (v *ResultView) Size() int { return len(v.keys) }

// Get returns the ObjKey at index i, or an OutOfRange error.
func (v *ResultView) Get(i int) (objectdb.ObjKey, error) {
	if i < 0 || i >= len(v.keys) {
		return 0, objectdb.NewOutOfRange("result row %d out of range [0,%d)", i, len(v.keys))
	}
	return v.keys[i], nil
}

// Keys exposes the full materialized slice, e.g. for a descriptor's
// own apply pass or a CLI printer.
func (v *ResultView) Keys() []objectdb.ObjKey { return v.keys }

// ApplyDescriptorOrdering runs the given ordering over the view's
// current keys and replaces them with the result (§4.4). It also
// records the view's LimitDescriptor, if any, so
// GetNumResultsExcludedByLimit can report it afterward.
func (v *ResultView) ApplyDescriptorOrdering(ctx context.Context, ord *ordering.DescriptorOrdering) error {
	next, err := ord.Apply(ctx, v.keys)
	if err != nil {
		return err
	}
	v.keys = next
	for _, d := range ord.Descriptors() {
		if l, ok := d.(*ordering.LimitDescriptor); ok {
			v.limit = l
		}
	}
	return nil
}

// GetNumResultsExcludedByLimit reports how many rows the last-applied
// LimitDescriptor removed, or 0 if none was applied (§4.4).
func (v *ResultView) GetNumResultsExcludedByLimit() int {
	if v.limit == nil {
		return 0
	}
	return v.limit.ExcludedByLimit()
}

// StorageVersion reports the version this view was materialized
// against.
func (v *ResultView) StorageVersion() uint64 { return v.version }

// SyncIfNeeded reports whether the table's current storage version
// still matches the version this view was built against. It never
// rebuilds the view itself (that requires re-running the query, which
// only the owning Query has enough context to do); it is the signal a
// caller uses to decide whether to call Query.FindAll again (§5).
func (v *ResultView) SyncIfNeeded(ctx context.Context) (current uint64, stale bool, err error) {
	current, err = v.storage.Version(ctx, v.table)
	if err != nil {
		return 0, false, objectdb.NewIOError(err)
	}
	return current, current != v.version, nil
}
