// Package duckstore implements objectdb.Storage/ObjectSource/Index over
// a DuckDB table reached through database/sql, generalizing the
// teacher's DuckDBClient (internal/duckdb_conn.go) and its
// sql.Open("duckdb", ...) connection setup from an analytics side-store
// into the engine's primary read path: clusters are paginated result
// batches, and each Leaf is a columnar vector decoded straight out of a
// batch's rows rather than copied into a row-oriented structure first.
package duckstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/lychee-technology/objectdb"
)

// Column binds one SQL result column to the engine's schema.
type Column struct {
	Name string
	Key  objectdb.ColKey
	Kind objectdb.ValueKind
}

// Open opens a DuckDB database at path (":memory:" for an ephemeral
// database), matching the teacher's NewDuckDBClient DSN handling without
// its extension/S3-PRAGMA bootstrapping, which storage/s3snap now owns.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckstore: ping %s: %w", path, err)
	}
	return db, nil
}

// Table is a single DuckDB table's worth of rows, paginated into
// clusters of clusterSize rows ordered by keyColumn.
type Table struct {
	db          *sql.DB
	key         objectdb.TableKey
	sqlTable    string
	keyColumn   string
	columns     []Column
	clusterSize int
	indexed     map[objectdb.ColKey]bool
}

// NewTable describes how a logical table maps onto a DuckDB table: its
// SQL name, the column holding its ObjKey, and the column set to
// project in cluster scans. indexedCols marks columns whose Index
// should run a SQL-side lookup instead of a materialized scan.
func NewTable(db *sql.DB, key objectdb.TableKey, sqlTable, keyColumn string, columns []Column, clusterSize int, indexedCols ...objectdb.ColKey) *Table {
	if clusterSize <= 0 {
		clusterSize = 4096
	}
	indexed := make(map[objectdb.ColKey]bool, len(indexedCols))
	for _, c := range indexedCols {
		indexed[c] = true
	}
	return &Table{db: db, key: key, sqlTable: sqlTable, keyColumn: keyColumn, columns: columns, clusterSize: clusterSize, indexed: indexed}
}

func (t *Table) columnList() string {
	names := make([]string, 0, len(t.columns)+1)
	names = append(names, t.keyColumn)
	for _, c := range t.columns {
		names = append(names, c.Name)
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

// Clusters implements objectdb.Storage, paging the backing table through
// LIMIT/OFFSET batches ordered by keyColumn.
func (t *Table) Clusters(ctx context.Context, table objectdb.TableKey) (objectdb.ClusterIterator, error) {
	if table != t.key {
		return nil, objectdb.NewInvalidQuery("duckstore: table %d not found", table)
	}
	return &clusterIterator{t: t, offset: 0}, nil
}

// Version reports the row count of the backing table as a cheap
// monotonic stand-in for a true snapshot version: DuckDB result batches
// here are read against a fresh query each time rather than a single
// pinned transaction, so row count changing is the only staleness
// signal available without wiring in DuckDB's own transaction IDs.
func (t *Table) Version(ctx context.Context, table objectdb.TableKey) (uint64, error) {
	if table != t.key {
		return 0, objectdb.NewInvalidQuery("duckstore: table %d not found", table)
	}
	var count uint64
	row := t.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", t.sqlTable))
	if err := row.Scan(&count); err != nil {
		return 0, objectdb.NewIOError(err)
	}
	return count, nil
}

// Resolve implements objectdb.ObjectSource by fetching a single row.
func (t *Table) Resolve(ctx context.Context, table objectdb.TableKey, key objectdb.ObjKey) (objectdb.Object, error) {
	if table != t.key {
		return nil, objectdb.NewInvalidQuery("duckstore: table %d not found", table)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.columnList(), t.sqlTable, t.keyColumn)
	row := t.db.QueryRowContext(ctx, query, int64(key))
	dest := make([]any, len(t.columns)+1)
	for i := range dest {
		dest[i] = new(any)
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, objectdb.NewInvalidQuery("duckstore: key %d not found in table %d", key, table)
		}
		return nil, objectdb.NewIOError(err)
	}
	values := make(map[objectdb.ColKey]objectdb.Value, len(t.columns))
	for i, c := range t.columns {
		v, err := decode(c.Kind, *dest[i+1].(*any))
		if err != nil {
			return nil, err
		}
		values[c.Key] = v
	}
	return &object{table: t, key: key, values: values}, nil
}

// Index returns a SQL-backed Index for col if col was declared indexed
// at construction, satisfying internal/parser.IndexLookup.
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
	rows, err := it.t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, false, objectdb.NewIOError(err)
	}
	defer rows.Close()

	c := &cluster{cols: make(map[objectdb.ColKey][]objectdb.Value, len(it.t.columns))}
	for _, col := range it.t.columns {
		c.cols[col.Key] = nil
	}

	dest := make([]any, len(it.t.columns)+1)
	for i := range dest {
		dest[i] = new(any)
	}
	n := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, false, objectdb.NewIOError(err)
		}
		key, err := decodeKey(*dest[0].(*any))
		if err != nil {
			return nil, false, err
		}
		c.keys = append(c.keys, key)
		for i, col := range it.t.columns {
			v, err := decode(col.Kind, *dest[i+1].(*any))
			if err != nil {
				return nil, false, err
			}
			c.cols[col.Key] = append(c.cols[col.Key], v)
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
		return nil, objectdb.NewInvalidQuery("duckstore: column %d not in cluster projection", col)
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

// columnLeaf is a plain value slice decoded from one DuckDB result
// column, the columnar vector SPEC_FULL describes.
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
	table  *Table
	key    objectdb.ObjKey
	values map[objectdb.ColKey]objectdb.Value
}

func (o *object) Key() objectdb.ObjKey { return o.key }

func (o *object) Get(col objectdb.ColKey) (objectdb.Value, error) {
	v, ok := o.values[col]
	if !ok {
		return objectdb.Value{}, objectdb.NewInvalidQuery("duckstore: column %d not projected", col)
	}
	return v, nil
}

// GetBacklinks has no SQL-side equivalent in this adapter: backlink
// resolution for a DuckDB-backed table is expected to run through
// internal/linkmap over forward columns, not a per-row reverse query.
func (o *object) GetBacklinks(col objectdb.ColKey) ([]objectdb.ObjKey, error) {
	return nil, objectdb.NewUnsupported("duckstore: column %d has no backlink query path", col)
}

func (o *object) GetTargetTable(col objectdb.ColKey) (objectdb.TableKey, error) {
	return 0, objectdb.NewUnsupported("duckstore: column %d target table must come from the Schema, not storage", col)
}

var _ objectdb.Object = (*object)(nil)

// index runs an indexed-column lookup as a SQL predicate rather than a
// materialized scan, letting DuckDB's own query planner use whatever
// index or zonemap it has over the column.
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
	predicate := fmt.Sprintf("%s = ?", ix.col.Name)
	arg := any(encode(value))
	if caseInsensitive && ix.col.Kind == objectdb.KindString {
		predicate = fmt.Sprintf("lower(%s) = lower(?)", ix.col.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", ix.t.keyColumn, ix.t.sqlTable, predicate, ix.t.keyColumn)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := ix.t.db.Query(query, arg)
	if err != nil {
		return nil, objectdb.NewIOError(err)
	}
	defer rows.Close()

	var out []objectdb.ObjKey
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, objectdb.NewIOError(err)
		}
		key, err := decodeKey(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
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

func decodeKey(raw any) (objectdb.ObjKey, error) {
	switch v := raw.(type) {
	case int64:
		return objectdb.ObjKey(v), nil
	case int32:
		return objectdb.ObjKey(v), nil
	default:
		return 0, objectdb.NewIOError(fmt.Errorf("duckstore: unexpected key type %T", raw))
	}
}

// encode converts an objectdb.Value to a database/sql driver argument.
func encode(v objectdb.Value) any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case objectdb.KindInt, objectdb.KindLink:
		if v.Kind == objectdb.KindLink {
			return int64(v.Link())
		}
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
	case objectdb.KindTimestamp:
		ts := v.Time()
		return time.Unix(ts.Seconds, int64(ts.Nanoseconds)).UTC()
	default:
		return nil
	}
}

// decode converts a database/sql scan result into an objectdb.Value of
// the given kind, treating a nil driver value as the kind's null.
func decode(kind objectdb.ValueKind, raw any) (objectdb.Value, error) {
	if raw == nil {
		return objectdb.NullValue(kind), nil
	}
	switch kind {
	case objectdb.KindInt:
		n, err := asInt64(raw)
		return objectdb.IntValue(n), err
	case objectdb.KindLink:
		n, err := asInt64(raw)
		return objectdb.LinkValue(objectdb.ObjKey(n)), err
	case objectdb.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return objectdb.Value{}, objectdb.NewIOError(fmt.Errorf("duckstore: expected bool, got %T", raw))
		}
		return objectdb.BoolValue(b), nil
	case objectdb.KindFloat:
		f, err := asFloat64(raw)
		return objectdb.FloatValue(float32(f)), err
	case objectdb.KindDouble:
		f, err := asFloat64(raw)
		return objectdb.DoubleValue(f), err
	case objectdb.KindString:
		switch s := raw.(type) {
		case string:
			return objectdb.StringValue(s), nil
		case []byte:
			return objectdb.StringValue(string(s)), nil
		default:
			return objectdb.Value{}, objectdb.NewIOError(fmt.Errorf("duckstore: expected string, got %T", raw))
		}
	case objectdb.KindBinary:
		b, ok := raw.([]byte)
		if !ok {
			return objectdb.Value{}, objectdb.NewIOError(fmt.Errorf("duckstore: expected []byte, got %T", raw))
		}
		return objectdb.BinaryValue(b), nil
	case objectdb.KindTimestamp:
		t, ok := raw.(time.Time)
		if !ok {
			return objectdb.Value{}, objectdb.NewIOError(fmt.Errorf("duckstore: expected time.Time, got %T", raw))
		}
		return objectdb.TimestampValue(objectdb.Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}), nil
	default:
		return objectdb.Value{}, objectdb.NewUnsupported("duckstore: unsupported column kind %s", kind)
	}
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	default:
		return 0, objectdb.NewIOError(fmt.Errorf("duckstore: expected integer, got %T", raw))
	}
}

func asFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	default:
		return 0, objectdb.NewIOError(fmt.Errorf("duckstore: expected float, got %T", raw))
	}
}
