// Package pgstore implements objectdb.Storage/ObjectSource/Index over a
// Postgres table reached through pgx, generalizing the teacher's
// PostgresPersistentRecordRepository (internal/postgres_persistent_
// repository_main_table.go) from an EAV main-table/attribute-split
// reader into a single-table, read-only cluster scanner. List-typed
// columns are scanned with lib/pq's Array helper, demonstrating the
// narrow Storage boundary is adapter-agnostic the same way storage/
// duckstore and storage/memstore are.
package pgstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/lychee-technology/objectdb"
)

// PgxPool is the subset of (*pgxpool.Pool)'s surface this adapter needs,
// narrow enough that pgxmock.PgxPoolIface satisfies it too, matching
// the teacher's own pgxmock-backed repository tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// Column binds one SQL result column to the engine's schema. List
// columns additionally carry the element kind, needed to pick the right
// pq.Array destination slice type.
type Column struct {
	Name string
	Key  objectdb.ColKey
	Kind objectdb.ValueKind
	List bool
	Elem objectdb.ValueKind
}

func sanitize(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// Table is a single Postgres table's worth of rows, paginated into
// clusters of clusterSize rows ordered by keyColumn.
type Table struct {
	pool        PgxPool
	key         objectdb.TableKey
	sqlTable    string
	keyColumn   string
	columns     []Column
	clusterSize int
	indexed     map[objectdb.ColKey]bool
}

// NewTable describes how a logical table maps onto a Postgres table.
func NewTable(pool PgxPool, key objectdb.TableKey, sqlTable, keyColumn string, columns []Column, clusterSize int, indexedCols ...objectdb.ColKey) *Table {
	if clusterSize <= 0 {
		clusterSize = 4096
	}
	indexed := make(map[objectdb.ColKey]bool, len(indexedCols))
	for _, c := range indexedCols {
		indexed[c] = true
	}
	return &Table{pool: pool, key: key, sqlTable: sanitize(sqlTable), keyColumn: sanitize(keyColumn), columns: columns, clusterSize: clusterSize, indexed: indexed}
}

func (t *Table) columnList() string {
	names := make([]string, 0, len(t.columns)+1)
	names = append(names, t.keyColumn)
	for _, c := range t.columns {
		names = append(names, sanitize(c.Name))
	}
	return strings.Join(names, ", ")
}

func (t *Table) column(col objectdb.ColKey) (Column, bool) {
	for _, c := range t.columns {
		if c.Key == col {
			return c, true
		}
	}
	return Column{}, false
}

// Clusters implements objectdb.Storage, paging the backing table.
func (t *Table) Clusters(ctx context.Context, table objectdb.TableKey) (objectdb.ClusterIterator, error) {
	if table != t.key {
		return nil, objectdb.NewInvalidQuery("pgstore: table %d not found", table)
	}
	return &clusterIterator{t: t, offset: 0}, nil
}

// Version reports the backing table's row count, the same staleness
// stand-in storage/duckstore uses in the absence of a pinned snapshot
// transaction.
func (t *Table) Version(ctx context.Context, table objectdb.TableKey) (uint64, error) {
	if table != t.key {
		return 0, objectdb.NewInvalidQuery("pgstore: table %d not found", table)
	}
	var count uint64
	row := t.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", t.sqlTable))
	if err := row.Scan(&count); err != nil {
		return 0, objectdb.NewIOError(err)
	}
	return count, nil
}

// Resolve implements objectdb.ObjectSource by fetching a single row.
func (t *Table) Resolve(ctx context.Context, table objectdb.TableKey, key objectdb.ObjKey) (objectdb.Object, error) {
	if table != t.key {
		return nil, objectdb.NewInvalidQuery("pgstore: table %d not found", table)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", t.columnList(), t.sqlTable, t.keyColumn)
	row := t.pool.QueryRow(ctx, query, int64(key))

	dest := scanDest(t.columns)
	if err := row.Scan(append([]any{new(int64)}, dest...)...); err != nil {
		if err == pgx.ErrNoRows {
			return nil, objectdb.NewInvalidQuery("pgstore: key %d not found in table %d", key, table)
		}
		return nil, objectdb.NewIOError(err)
	}
	values, err := toValues(t.columns, dest)
	if err != nil {
		return nil, err
	}
	return &object{key: key, values: values}, nil
}

// Index returns a SQL-backed Index for col if col was declared indexed.
func (t *Table) Index(table objectdb.TableKey, col objectdb.ColKey) objectdb.Index {
	if table != t.key || !t.indexed[col] {
		return nil
	}
	c, ok := t.column(col)
	if !ok {
		return nil
	}
	return &index{t: t, col: c}
}

type clusterIterator struct {
	t      *Table
	offset int
	done   bool
}

func (it *clusterIterator) Next(ctx context.Context) (objectdb.Cluster, bool, error) {
	if it.done {
		return nil, false, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		it.t.columnList(), it.t.sqlTable, it.t.keyColumn, it.t.clusterSize, it.offset)
	rows, err := it.t.pool.Query(ctx, query)
	if err != nil {
		return nil, false, objectdb.NewIOError(err)
	}
	defer rows.Close()

	c := &cluster{cols: make(map[objectdb.ColKey][]objectdb.Value, len(it.t.columns))}
	for _, col := range it.t.columns {
		c.cols[col.Key] = nil
	}

	n := 0
	for rows.Next() {
		var key int64
		dest := scanDest(it.t.columns)
		if err := rows.Scan(append([]any{&key}, dest...)...); err != nil {
			return nil, false, objectdb.NewIOError(err)
		}
		values, err := toValues(it.t.columns, dest)
		if err != nil {
			return nil, false, err
		}
		c.keys = append(c.keys, objectdb.ObjKey(key))
		for _, col := range it.t.columns {
			c.cols[col.Key] = append(c.cols[col.Key], values[col.Key])
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, false, objectdb.NewIOError(err)
	}

	it.offset += n
	if n < it.t.clusterSize {
		it.done = true
	}
	if n == 0 {
		return nil, false, nil
	}
	return c, true, nil
}

func (it *clusterIterator) Close() error { return nil }

type cluster struct {
	keys []objectdb.ObjKey
	cols map[objectdb.ColKey][]objectdb.Value
}

func (c *cluster) Leaf(col objectdb.ColKey) (objectdb.Leaf, error) {
	vals, ok := c.cols[col]
	if !ok {
		return nil, objectdb.NewInvalidQuery("pgstore: column %d not in cluster projection", col)
	}
	return &columnLeaf{keys: c.keys, values: vals}, nil
}

func (c *cluster) GetRealKey(row int) (objectdb.ObjKey, error) {
	if row < 0 || row >= len(c.keys) {
		return 0, objectdb.NewOutOfRange("cluster row %d out of range [0,%d)", row, len(c.keys))
	}
	return c.keys[row], nil
}

func (c *cluster) LowerBoundKey(key objectdb.ObjKey) int {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= key })
	if i == len(c.keys) {
		return objectdb.NotFound
	}
	return i
}

func (c *cluster) Size() int { return len(c.keys) }

var _ objectdb.Cluster = (*cluster)(nil)

type columnLeaf struct {
	keys   []objectdb.ObjKey
	values []objectdb.Value
}

func (l *columnLeaf) Kind() objectdb.ValueKind {
	if len(l.values) == 0 {
		return objectdb.KindMixed
	}
	return l.values[0].Kind
}

func (l *columnLeaf) Size() int { return len(l.values) }

func (l *columnLeaf) Get(row int) (objectdb.Value, error) {
	if row < 0 || row >= len(l.values) {
		return objectdb.Value{}, objectdb.NewOutOfRange("leaf row %d out of range [0,%d)", row, len(l.values))
	}
	return l.values[row], nil
}

func (l *columnLeaf) FindFirst(value objectdb.Value, start, end int) (int, error) {
	if end > len(l.values) {
		end = len(l.values)
	}
	for row := start; row < end; row++ {
		v := l.values[row]
		if v.Null == value.Null && (value.Null || v.Equal(value)) {
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (l *columnLeaf) LowerBoundKey(key objectdb.ObjKey) int {
	i := sort.Search(len(l.keys), func(i int) bool { return l.keys[i] >= key })
	if i == len(l.keys) {
		return objectdb.NotFound
	}
	return i
}

var _ objectdb.Leaf = (*columnLeaf)(nil)

type object struct {
	key    objectdb.ObjKey
	values map[objectdb.ColKey]objectdb.Value
}

func (o *object) Key() objectdb.ObjKey { return o.key }

func (o *object) Get(col objectdb.ColKey) (objectdb.Value, error) {
	v, ok := o.values[col]
	if !ok {
		return objectdb.Value{}, objectdb.NewInvalidQuery("pgstore: column %d not projected", col)
	}
	return v, nil
}

func (o *object) GetBacklinks(col objectdb.ColKey) ([]objectdb.ObjKey, error) {
	return nil, objectdb.NewUnsupported("pgstore: column %d has no backlink query path", col)
}

func (o *object) GetTargetTable(col objectdb.ColKey) (objectdb.TableKey, error) {
	return 0, objectdb.NewUnsupported("pgstore: column %d target table must come from the Schema, not storage", col)
}

var _ objectdb.Object = (*object)(nil)

// index runs an indexed column's equality lookup as a SQL predicate.
type index struct {
	t   *Table
	col Column
}

func (ix *index) FindFirst(value objectdb.Value) (objectdb.ObjKey, bool, error) {
	keys, err := ix.findAll(value, false, 1)
	if err != nil || len(keys) == 0 {
		return 0, false, err
	}
	return keys[0], true, nil
}

func (ix *index) FindAll(value objectdb.Value, caseInsensitive bool) ([]objectdb.ObjKey, error) {
	return ix.findAll(value, caseInsensitive, 0)
}

func (ix *index) findAll(value objectdb.Value, caseInsensitive bool, limit int) ([]objectdb.ObjKey, error) {
	colName := sanitize(ix.col.Name)
	predicate := fmt.Sprintf("%s = $1", colName)
	if caseInsensitive && ix.col.Kind == objectdb.KindString {
		predicate = fmt.Sprintf("lower(%s) = lower($1)", colName)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", ix.t.keyColumn, ix.t.sqlTable, predicate, ix.t.keyColumn)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := ix.t.pool.Query(context.Background(), query, scanArg(value))
	if err != nil {
		return nil, objectdb.NewIOError(err)
	}
	defer rows.Close()

	var out []objectdb.ObjKey
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, objectdb.NewIOError(err)
		}
		out = append(out, objectdb.ObjKey(key))
	}
	if err := rows.Err(); err != nil {
		return nil, objectdb.NewIOError(err)
	}
	return out, nil
}

func (ix *index) FindAllNoCopy(value objectdb.Value) (objectdb.IndexMatch, error) {
	keys, err := ix.FindAll(value, false)
	if err != nil {
		return objectdb.IndexMatch{}, err
	}
	switch len(keys) {
	case 0:
		return objectdb.IndexMatch{Kind: objectdb.IndexMatchNotFound}, nil
	case 1:
		return objectdb.IndexMatch{Kind: objectdb.IndexMatchSingle, Single: keys[0]}, nil
	default:
		return objectdb.IndexMatch{Kind: objectdb.IndexMatchColumn, Ref: ix.col.Key, Start: 0, End: len(keys)}, nil
	}
}

var _ objectdb.Index = (*index)(nil)

func scanArg(v objectdb.Value) any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case objectdb.KindLink:
		return int64(v.Link())
	case objectdb.KindInt:
		return v.Int()
	case objectdb.KindBool:
		return v.Bool()
	case objectdb.KindFloat:
		return float64(v.Float32())
	case objectdb.KindDouble:
		return v.Float64()
	case objectdb.KindString:
		return v.Str()
	case objectdb.KindBinary:
		return v.Bytes()
	default:
		return nil
	}
}

// scanDest allocates one scan destination per column: a plain pointer
// for scalar kinds, or a pq.Array-wrapped slice pointer for list
// columns, so a single row.Scan call can fill every projected column in
// one round trip regardless of shape.
func scanDest(columns []Column) []any {
	dest := make([]any, len(columns))
	for i, c := range columns {
		if c.List {
			dest[i] = listDest(c.Elem)
			continue
		}
		dest[i] = scalarDest(c.Kind)
	}
	return dest
}

func scalarDest(kind objectdb.ValueKind) any {
	switch kind {
	case objectdb.KindInt, objectdb.KindLink:
		return new(*int64)
	case objectdb.KindBool:
		return new(*bool)
	case objectdb.KindFloat, objectdb.KindDouble:
		return new(*float64)
	case objectdb.KindString:
		return new(*string)
	case objectdb.KindBinary:
		return new([]byte)
	case objectdb.KindTimestamp:
		return new(*int64)
	default:
		return new(any)
	}
}

// listDest wraps a slice pointer with pq.Array so pgx/lib/pq can decode
// a Postgres array column in one scan, the mechanism SPEC_FULL.md calls
// out this package for.
func listDest(elem objectdb.ValueKind) any {
	switch elem {
	case objectdb.KindInt, objectdb.KindLink:
		return pq.Array(&[]int64{})
	case objectdb.KindBool:
		return pq.Array(&[]bool{})
	case objectdb.KindFloat, objectdb.KindDouble:
		return pq.Array(&[]float64{})
	case objectdb.KindString:
		return pq.Array(&[]string{})
	default:
		return pq.Array(&[]string{})
	}
}

func toValues(columns []Column, dest []any) (map[objectdb.ColKey]objectdb.Value, error) {
	values := make(map[objectdb.ColKey]objectdb.Value, len(columns))
	for i, c := range columns {
		if c.List {
			v, err := toListValue(c, dest[i])
			if err != nil {
				return nil, err
			}
			values[c.Key] = v
			continue
		}
		v, err := toScalarValue(c.Kind, dest[i])
		if err != nil {
			return nil, err
		}
		values[c.Key] = v
	}
	return values, nil
}

func toScalarValue(kind objectdb.ValueKind, dest any) (objectdb.Value, error) {
	switch kind {
	case objectdb.KindInt:
		p := dest.(**int64)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.IntValue(**p), nil
	case objectdb.KindLink:
		p := dest.(**int64)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.LinkValue(objectdb.ObjKey(**p)), nil
	case objectdb.KindBool:
		p := dest.(**bool)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.BoolValue(**p), nil
	case objectdb.KindFloat:
		p := dest.(**float64)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.FloatValue(float32(**p)), nil
	case objectdb.KindDouble:
		p := dest.(**float64)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.DoubleValue(**p), nil
	case objectdb.KindString:
		p := dest.(**string)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.StringValue(**p), nil
	case objectdb.KindBinary:
		p := dest.(*[]byte)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.BinaryValue(*p), nil
	case objectdb.KindTimestamp:
		p := dest.(**int64)
		if *p == nil {
			return objectdb.NullValue(kind), nil
		}
		return objectdb.TimestampValue(objectdb.Timestamp{Seconds: **p}), nil
	default:
		return objectdb.Value{}, objectdb.NewUnsupported("pgstore: unsupported column kind %s", kind)
	}
}

func toListValue(c Column, dest any) (objectdb.Value, error) {
	switch c.Elem {
	case objectdb.KindInt, objectdb.KindLink:
		arr := dest.(*pq.Int64Array)
		elems := make([]objectdb.Value, len(*arr))
		for i, v := range *arr {
			if c.Elem == objectdb.KindLink {
				elems[i] = objectdb.LinkValue(objectdb.ObjKey(v))
			} else {
				elems[i] = objectdb.IntValue(v)
			}
		}
		return objectdb.ListValue(c.Elem, elems), nil
	case objectdb.KindBool:
		arr := dest.(*pq.BoolArray)
		elems := make([]objectdb.Value, len(*arr))
		for i, v := range *arr {
			elems[i] = objectdb.BoolValue(v)
		}
		return objectdb.ListValue(c.Elem, elems), nil
	case objectdb.KindFloat, objectdb.KindDouble:
		arr := dest.(*pq.Float64Array)
		elems := make([]objectdb.Value, len(*arr))
		for i, v := range *arr {
			elems[i] = objectdb.DoubleValue(v)
		}
		return objectdb.ListValue(c.Elem, elems), nil
	default:
		arr := dest.(*pq.StringArray)
		elems := make([]objectdb.Value, len(*arr))
		for i, v := range *arr {
			elems[i] = objectdb.StringValue(v)
		}
		return objectdb.ListValue(c.Elem, elems), nil
	}
}
