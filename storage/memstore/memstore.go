// Package memstore is an in-memory objectdb.Storage/ObjectSource
// implementation, built from a fixed set of rows rather than a live
// database connection. It backs the condition-node and query-builder
// tests and cmd/querydemo's default fixture mode, generalizing the
// teacher's in-process DataRecord maps (entity_manager_test.go's fixture
// helpers) into a reusable, cluster-chunked read-only snapshot.
package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/lychee-technology/objectdb"
)

type row struct {
	key    objectdb.ObjKey
	values map[objectdb.ColKey]objectdb.Value
}

// Table is a single table's worth of rows, chunked into clusters of a
// fixed size, with optional secondary indexes and backlink maps for its
// link-typed columns.
type Table struct {
	key         objectdb.TableKey
	rows        []row
	clusterSize int
	targets     map[objectdb.ColKey]objectdb.TableKey
	indexed     map[objectdb.ColKey]bool
	backlinks   map[objectdb.ColKey]map[objectdb.ObjKey][]objectdb.ObjKey
	version     uint64
}

// Builder assembles a Table from rows added in any key order; Build
// sorts them once by key before chunking into clusters.
type Builder struct {
	table       objectdb.TableKey
	rows        []row
	clusterSize int
	targets     map[objectdb.ColKey]objectdb.TableKey
	indexed     map[objectdb.ColKey]bool
}

// NewBuilder starts a Table builder for the given table key. clusterSize
// controls how many rows each cluster holds; it must be positive.
func NewBuilder(table objectdb.TableKey, clusterSize int) *Builder {
	if clusterSize <= 0 {
		clusterSize = 1
	}
	return &Builder{
		table:       table,
		clusterSize: clusterSize,
		targets:     make(map[objectdb.ColKey]objectdb.TableKey),
		indexed:     make(map[objectdb.ColKey]bool),
	}
}

// Row adds one object's column values, keyed by its stable ObjKey.
func (b *Builder) Row(key objectdb.ObjKey, values map[objectdb.ColKey]objectdb.Value) *Builder {
	b.rows = append(b.rows, row{key: key, values: values})
	return b
}

// Index marks col as backed by a secondary index (§4.1.1's Indexed
// tier); the index scans the table's rows on each lookup.
func (b *Builder) Index(col objectdb.ColKey) *Builder {
	b.indexed[col] = true
	return b
}

// TargetTable records the table a link/backlink column points at, used
// to answer Object.GetTargetTable.
func (b *Builder) TargetTable(col objectdb.ColKey, target objectdb.TableKey) *Builder {
	b.targets[col] = target
	return b
}

// Build sorts the accumulated rows by key and materializes the Table.
// Its backlink maps start empty; RegisterBacklinks fills them.
func (b *Builder) Build() *Table {
	sorted := append([]row(nil), b.rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	t := &Table{
		key:         b.table,
		rows:        sorted,
		clusterSize: b.clusterSize,
		targets:     b.targets,
		indexed:     b.indexed,
		backlinks:   make(map[objectdb.ColKey]map[objectdb.ObjKey][]objectdb.ObjKey),
	}
	return t
}

// BumpVersion increments the table's observed storage version, as if a
// new snapshot had just replaced the current one (§5).
func (t *Table) BumpVersion() { t.version++ }

// Version reports the table's current snapshot version, satisfying
// resultview.VersionedStorage structurally (memstore does not import
// resultview to avoid a needless dependency on that package's types).
func (t *Table) Version(ctx context.Context, table objectdb.TableKey) (uint64, error) {
	return t.version, nil
}

// RegisterBacklinks wires a reverse index for col (a backlink column on
// t) from sourceTable's forward link/list column: every row of
// sourceRows pointing at a key in t becomes a backlink entry.
func (t *Table) RegisterBacklinks(col objectdb.ColKey, sourceTable *Table, forwardCol objectdb.ColKey) {
	rev := make(map[objectdb.ObjKey][]objectdb.ObjKey)
	for _, r := range sourceTable.rows {
		v, ok := r.values[forwardCol]
		if !ok || v.Null {
			continue
		}
		switch v.Kind {
		case objectdb.KindLink:
			rev[v.Link()] = append(rev[v.Link()], r.key)
		case objectdb.KindList:
			for _, elem := range v.Elems() {
				if !elem.Null {
					rev[elem.Link()] = append(rev[elem.Link()], r.key)
				}
			}
		}
	}
	for _, keys := range rev {
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	}
	t.backlinks[col] = rev
}

func (t *Table) rowIndex(key objectdb.ObjKey) (int, bool) {
	i := sort.Search(len(t.rows), func(i int) bool { return t.rows[i].key >= key })
	if i < len(t.rows) && t.rows[i].key == key {
		return i, true
	}
	return 0, false
}

// Clusters implements objectdb.Storage.
func (t *Table) Clusters(ctx context.Context, table objectdb.TableKey) (objectdb.ClusterIterator, error) {
	if table != t.key {
		return nil, objectdb.NewInvalidQuery("memstore: table %d not found", table)
	}
	return &clusterIterator{table: t, next: 0}, nil
}

// Resolve implements objectdb.ObjectSource.
func (t *Table) Resolve(ctx context.Context, table objectdb.TableKey, key objectdb.ObjKey) (objectdb.Object, error) {
	if table != t.key {
		return nil, objectdb.NewInvalidQuery("memstore: table %d not found", table)
	}
	idx, ok := t.rowIndex(key)
	if !ok {
		return nil, objectdb.NewInvalidQuery("memstore: key %d not found in table %d", key, table)
	}
	return &object{table: t, row: t.rows[idx]}, nil
}

// Index returns the secondary index for col if one was requested at
// build time, satisfying internal/parser.IndexLookup.
func (t *Table) Index(table objectdb.TableKey, col objectdb.ColKey) objectdb.Index {
	if table != t.key || !t.indexed[col] {
		return nil
	}
	return &index{table: t, col: col}
}

type clusterIterator struct {
	table *Table
	next  int
}

func (it *clusterIterator) Next(ctx context.Context) (objectdb.Cluster, bool, error) {
	if it.next >= len(it.table.rows) {
		return nil, false, nil
	}
	start := it.next
	end := start + it.table.clusterSize
	if end > len(it.table.rows) {
		end = len(it.table.rows)
	}
	it.next = end
	return &cluster{table: it.table, rows: it.table.rows[start:end]}, true, nil
}

func (it *clusterIterator) Close() error { return nil }

// cluster is a contiguous row slice of a Table, satisfying
// objectdb.Cluster.
type cluster struct {
	table *Table
	rows  []row
}

func (c *cluster) Leaf(col objectdb.ColKey) (objectdb.Leaf, error) {
	return &columnLeaf{rows: c.rows, col: col}, nil
}

func (c *cluster) GetRealKey(row int) (objectdb.ObjKey, error) {
	if row < 0 || row >= len(c.rows) {
		return 0, objectdb.NewOutOfRange("cluster row %d out of range [0,%d)", row, len(c.rows))
	}
	return c.rows[row].key, nil
}

func (c *cluster) LowerBoundKey(key objectdb.ObjKey) int {
	i := sort.Search(len(c.rows), func(i int) bool { return c.rows[i].key >= key })
	if i == len(c.rows) {
		return objectdb.NotFound
	}
	return i
}

func (c *cluster) Size() int { return len(c.rows) }

// columnLeaf reads one column out of a cluster's row slice; it avoids
// copying the rows into a parallel []Value slice up front, unlike
// internal/leaf.Column, since a memstore cluster's rows already carry
// every column together.
type columnLeaf struct {
	rows []row
	col  objectdb.ColKey
}

func (l *columnLeaf) Kind() objectdb.ValueKind {
	for _, r := range l.rows {
		if v, ok := r.values[l.col]; ok {
			return v.Kind
		}
	}
	return objectdb.KindInt
}

func (l *columnLeaf) Size() int { return len(l.rows) }

func (l *columnLeaf) Get(row int) (objectdb.Value, error) {
	if row < 0 || row >= len(l.rows) {
		return objectdb.Value{}, objectdb.NewOutOfRange("leaf row %d out of range [0,%d)", row, len(l.rows))
	}
	v, ok := l.rows[row].values[l.col]
	if !ok {
		return objectdb.NullValue(l.Kind()), nil
	}
	return v, nil
}

func (l *columnLeaf) FindFirst(value objectdb.Value, start, end int) (int, error) {
	if end > len(l.rows) {
		end = len(l.rows)
	}
	for row := start; row < end; row++ {
		v, err := l.Get(row)
		if err != nil {
			return 0, err
		}
		if v.Null == value.Null && (value.Null || v.Equal(value)) {
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (l *columnLeaf) LowerBoundKey(key objectdb.ObjKey) int {
	i := sort.Search(len(l.rows), func(i int) bool { return l.rows[i].key >= key })
	if i == len(l.rows) {
		return objectdb.NotFound
	}
	return i
}

var _ objectdb.Leaf = (*columnLeaf)(nil)
var _ objectdb.Cluster = (*cluster)(nil)

// object is a single-row accessor over a Table, satisfying objectdb.Object.
type object struct {
	table *Table
	row   row
}

func (o *object) Key() objectdb.ObjKey { return o.row.key }

func (o *object) Get(col objectdb.ColKey) (objectdb.Value, error) {
	v, ok := o.row.values[col]
	if !ok {
		return objectdb.Value{}, objectdb.NewInvalidQuery("memstore: column %d not set on row %d", col, o.row.key)
	}
	return v, nil
}

func (o *object) GetBacklinks(col objectdb.ColKey) ([]objectdb.ObjKey, error) {
	rev, ok := o.table.backlinks[col]
	if !ok {
		return nil, nil
	}
	return rev[o.row.key], nil
}

func (o *object) GetTargetTable(col objectdb.ColKey) (objectdb.TableKey, error) {
	t, ok := o.table.targets[col]
	if !ok {
		return 0, objectdb.NewInvalidQuery("memstore: column %d has no registered target table", col)
	}
	return t, nil
}

var _ objectdb.Object = (*object)(nil)

// index is the secondary-index counterpart to columnLeaf: a full scan
// of the table's rows for col, materialized once per FindAll call. It
// is intentionally simple (no persistent sorted structure) since
// memstore's whole point is a small, readable reference adapter; the
// real cost-tier behavior it exists to exercise lives in
// internal/condnode, not here.
type index struct {
	table *Table
	col   objectdb.ColKey
}

func (ix *index) FindFirst(value objectdb.Value) (objectdb.ObjKey, bool, error) {
	for _, r := range ix.table.rows {
		v, ok := r.values[ix.col]
		if ok && !v.Null && v.Equal(value) {
			return r.key, true, nil
		}
	}
	return 0, false, nil
}

func (ix *index) FindAll(value objectdb.Value, caseInsensitive bool) ([]objectdb.ObjKey, error) {
	var out []objectdb.ObjKey
	needle := value.Str()
	for _, r := range ix.table.rows {
		v, ok := r.values[ix.col]
		if !ok || v.Null {
			continue
		}
		match := v.Equal(value)
		if caseInsensitive && v.Kind == objectdb.KindString {
			match = strings.EqualFold(v.Str(), needle)
		}
		if match {
			out = append(out, r.key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (ix *index) FindAllNoCopy(value objectdb.Value) (objectdb.IndexMatch, error) {
	keys, err := ix.FindAll(value, false)
	if err != nil {
		return objectdb.IndexMatch{}, err
	}
	if len(keys) == 0 {
		return objectdb.IndexMatch{Kind: objectdb.IndexMatchNotFound}, nil
	}
	if len(keys) == 1 {
		return objectdb.IndexMatch{Kind: objectdb.IndexMatchSingle, Single: keys[0]}, nil
	}
	return objectdb.IndexMatch{Kind: objectdb.IndexMatchColumn, Ref: ix.col, Start: 0, End: len(keys)}, nil
}

var _ objectdb.Index = (*index)(nil)
