package objectdb

import "fmt"

// ColumnDef describes one column of a table: its stable key, value kind,
// and attribute bitmask (§3, §6). This generalizes the teacher's
// AttributeMetadata (attr_name + ValueType + column binding) from an EAV
// attribute catalog into a column-store schema entry.
type ColumnDef struct {
	Name  string
	Key   ColKey
	Kind  ValueKind
	Attrs ColAttr
	// ElementKind is the element value kind when Attrs.Has(AttrList).
	ElementKind ValueKind
	// TargetTable is set when Kind is KindLink/KindBacklink/KindList of
	// links: the table a forward link points at, or (for a backlink
	// column) the table the inverse forward link originates from.
	TargetTable TableKey
	// OriginColumn is set on backlink columns: the forward ColKey in
	// TargetTable whose inverse this column exposes (§4.3).
	OriginColumn ColKey
}

// TableDef describes one table's column set.
type TableDef struct {
	Name           string
	Key            TableKey
	Columns        map[string]ColumnDef
	PrimaryKeyName string // empty if the table has no declared primary key
}

// Column looks up a column by name, returning (def, true) if found.
func (t TableDef) Column(name string) (ColumnDef, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// Schema is the narrow external interface (§6) the core consumes for
// column attributes, type enum, and primary-key discovery. It carries no
// row data — only metadata.
type Schema interface {
	ColumnAttributes(table TableKey, col ColKey) (ColAttr, error)
	ColumnKind(table TableKey, col ColKey) (ValueKind, error)
	PrimaryKeyColumn(table TableKey) (ColKey, bool)
}

// SchemaRegistry provides schema lookup by name or key, generalizing the
// teacher's SchemaRegistry (GetSchemaAttributeCacheByName/ByID,
// ListSchemas) from a per-schema EAV attribute cache into a full
// TableDef registry, and additionally implements the Schema interface
// so a registry can be handed directly to the query engine.
type SchemaRegistry interface {
	Schema

	TableByName(name string) (TableDef, error)
	TableByKey(key TableKey) (TableDef, error)
	ListTables() []string
}

// StaticRegistry is an in-memory SchemaRegistry backed by a fixed set of
// TableDefs, suitable for tests, fixtures, and the jsonschema-loaded
// registry in storage/jsonschema.
type StaticRegistry struct {
	byName map[string]TableDef
	byKey  map[TableKey]TableDef
}

// NewStaticRegistry builds a registry from the given table definitions.
func NewStaticRegistry(tables ...TableDef) *StaticRegistry {
	r := &StaticRegistry{
		byName: make(map[string]TableDef, len(tables)),
		byKey:  make(map[TableKey]TableDef, len(tables)),
	}
	for _, t := range tables {
		r.byName[t.Name] = t
		r.byKey[t.Key] = t
	}
	return r
}

func (r *StaticRegistry) TableByName(name string) (TableDef, error) {
	t, ok := r.byName[name]
	if !ok {
		return TableDef{}, NewInvalidQuery("unknown table %q", name).WithFragment(name)
	}
	return t, nil
}

func (r *StaticRegistry) TableByKey(key TableKey) (TableDef, error) {
	t, ok := r.byKey[key]
	if !ok {
		return TableDef{}, NewInvalidQuery("unknown table key %d", key)
	}
	return t, nil
}

func (r *StaticRegistry) ListTables() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

func (r *StaticRegistry) columnByKey(table TableKey, col ColKey) (ColumnDef, error) {
	t, ok := r.byKey[table]
	if !ok {
		return ColumnDef{}, NewInvalidQuery("unknown table key %d", table)
	}
	for _, c := range t.Columns {
		if c.Key == col {
			return c, nil
		}
	}
	return ColumnDef{}, NewInvalidQuery("unknown column key %d in table %q", col, t.Name)
}

func (r *StaticRegistry) ColumnAttributes(table TableKey, col ColKey) (ColAttr, error) {
	c, err := r.columnByKey(table, col)
	if err != nil {
		return 0, err
	}
	return c.Attrs, nil
}

func (r *StaticRegistry) ColumnKind(table TableKey, col ColKey) (ValueKind, error) {
	c, err := r.columnByKey(table, col)
	if err != nil {
		return 0, err
	}
	return c.Kind, nil
}

func (r *StaticRegistry) PrimaryKeyColumn(table TableKey) (ColKey, bool) {
	t, ok := r.byKey[table]
	if !ok {
		return 0, false
	}
	if t.PrimaryKeyName == "" {
		return 0, false
	}
	c, ok := t.Columns[t.PrimaryKeyName]
	if !ok {
		return 0, false
	}
	return c.Key, true
}

var _ SchemaRegistry = (*StaticRegistry)(nil)

func (t TableDef) String() string {
	return fmt.Sprintf("TableDef(%s, %d columns)", t.Name, len(t.Columns))
}
