package objectdb

import "context"

// Storage is the narrow external interface (§6) the core consumes to
// enumerate a table's clusters. It replaces the teacher's EntityManager
// (Create/Get/Update/Delete/Query/BatchCreate/...): this engine is
// read-only, so every write-shaped method is gone and what remains is
// purely iteration.
type Storage interface {
	// Clusters returns an iterator over the contiguous object ranges
	// backing the given table, in ascending ObjKey order.
	Clusters(ctx context.Context, table TableKey) (ClusterIterator, error)
}

// ClusterIterator walks a table's clusters one at a time. Implementations
// wrap whatever the storage engine's native cursor looks like (a DuckDB
// result batch, a pgx row set, an in-memory slice); the core never keeps
// more than the current Cluster alive.
type ClusterIterator interface {
	Next(ctx context.Context) (Cluster, bool, error)
	Close() error
}

// Cluster is a contiguous range of objects (§3). It exposes a typed Leaf
// per column and translates between local row offsets and the table's
// global ObjKey space.
type Cluster interface {
	Leaf(col ColKey) (Leaf, error)
	// GetRealKey maps a local row offset to its stable ObjKey.
	GetRealKey(row int) (ObjKey, error)
	// LowerBoundKey returns the smallest row whose real key is >= key,
	// or NotFound if every row in this cluster sorts before key.
	LowerBoundKey(key ObjKey) int
	// Size reports the number of rows in this cluster.
	Size() int
}

// Leaf is a uniform, typed view over one column slice within a cluster
// (C1, §6). FindFirst scans rows in [start,end) and returns the first
// matching row, or NotFound.
type Leaf interface {
	Kind() ValueKind
	Get(row int) (Value, error)
	Size() int
	FindFirst(value Value, start, end int) (int, error)
	LowerBoundKey(key ObjKey) int
}

// Index is the accelerated-lookup counterpart to a Leaf on an Indexed
// column (§4.1.1, §6). FindAllNoCopy lets the caller avoid materializing
// a key list when the index can describe the match as a single key or a
// contiguous column range.
type Index interface {
	FindFirst(value Value) (ObjKey, bool, error)
	FindAll(value Value, caseInsensitive bool) ([]ObjKey, error)
	FindAllNoCopy(value Value) (IndexMatch, error)
}

// IndexMatch is the tagged result of Index.FindAllNoCopy (§6).
type IndexMatch struct {
	Kind   IndexMatchKind
	Single ObjKey
	Ref    ColKey
	Start  int
	End    int
}

type IndexMatchKind uint8

const (
	IndexMatchNotFound IndexMatchKind = iota
	IndexMatchSingle
	IndexMatchColumn
)

// Object is a single-row accessor (§6), used by the expression engine
// and link map to read column values, backlinks, and a link column's
// target table without going through a full Cluster scan.
type Object interface {
	Key() ObjKey
	Get(col ColKey) (Value, error)
	GetBacklinks(col ColKey) ([]ObjKey, error)
	GetTargetTable(col ColKey) (TableKey, error)
}

// ReplicationSink is an optional write-side observer (§6); queries never
// call into it. It exists so a storage adapter implementing both read
// and replication duties can share one type without the core needing to
// know about it.
type ReplicationSink interface {
	OnClusterChanged(table TableKey)
}

// ObjectSource resolves an ObjKey to an Object, the minimal capability
// the expression engine and link map need beyond cluster scanning.
type ObjectSource interface {
	Resolve(ctx context.Context, table TableKey, key ObjKey) (Object, error)
}

// Table binds a TableKey to its Storage, Schema, and ObjectSource,
// giving Query.Build a single handle to pass around instead of three
// separate collaborators. It carries no data of its own.
type Table struct {
	Key     TableKey
	Storage Storage
	Schema  SchemaRegistry
	Objects ObjectSource
}
