// Package jsonschema builds an objectdb.SchemaRegistry from JSON Schema
// documents on disk, generalizing the teacher's fileSchemaRegistry
// (internal/file_schema_registry.go) and its hand-rolled JSONSchema/
// PropertySchema types (jsonschema.go) from a Postgres-backed EAV
// attribute catalog into a column-store TableDef loader with no
// database dependency: every table's shape comes from its schema file
// alone.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gojsonschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/objectdb"
)

// LoadDirectory scans dir for "<table>.schema.json" files and builds a
// StaticRegistry from them, auto-assigning no IDs of its own: every
// table and column key must be declared explicitly via the x-table-key/
// x-col-key vendor extensions, since a query engine's ColKey/TableKey
// values must stay stable across reloads (unlike the teacher's
// directory-scan mode, which auto-assigns schema IDs starting at 100 on
// every load).
func LoadDirectory(dir string) (*objectdb.StaticRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".schema.json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("jsonschema: no *.schema.json files found in %s", dir)
	}

	tables := make([]objectdb.TableDef, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("jsonschema: read %s: %w", name, err)
		}
		def, err := ParseTable(strings.TrimSuffix(name, ".schema.json"), data)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: parse %s: %w", name, err)
		}
		tables = append(tables, def)
	}
	return objectdb.NewStaticRegistry(tables...), nil
}

// ParseTable decodes one JSON Schema document into a TableDef. The
// document's top-level "properties" entries become columns; each
// property's "type" is resolved through the library's own Schema
// unmarshaling (mirroring parsePropertySchema's standard-field handling)
// while the x-* vendor extensions — read off the raw property map, since
// they are not part of the JSON Schema vocabulary the library models —
// supply everything the standard vocabulary has no slot for: stable
// ColKey/TableKey values, the list/nullable/indexed/string-enum
// attribute bitmask (§3), and link target tables.
func ParseTable(name string, data []byte) (objectdb.TableDef, error) {
	var schema gojsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return objectdb.TableDef{}, fmt.Errorf("decode schema: %w", err)
	}

	var raw struct {
		TableKey   int32                      `json:"x-table-key"`
		PrimaryKey string                     `json:"x-primary-key"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return objectdb.TableDef{}, fmt.Errorf("decode vendor extensions: %w", err)
	}

	def := objectdb.TableDef{
		Name:           name,
		Key:            objectdb.TableKey(raw.TableKey),
		Columns:        make(map[string]objectdb.ColumnDef, len(schema.Properties)),
		PrimaryKeyName: raw.PrimaryKey,
	}

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	for propName, propSchema := range schema.Properties {
		rawProp, ok := raw.Properties[propName]
		if !ok {
			continue
		}
		col, err := parseColumn(propName, propSchema, rawProp, required[propName])
		if err != nil {
			return objectdb.TableDef{}, fmt.Errorf("column %q: %w", propName, err)
		}
		def.Columns[propName] = col
	}

	return def, nil
}

func parseColumn(name string, prop *gojsonschema.Schema, rawProp json.RawMessage, required bool) (objectdb.ColumnDef, error) {
	var ext struct {
		ColKey      int32 `json:"x-col-key"`
		List        bool  `json:"x-list"`
		Nullable    bool  `json:"x-nullable"`
		Indexed     bool  `json:"x-indexed"`
		StringEnum  bool  `json:"x-string-enum"`
		TargetTable int32 `json:"x-target-table"`
		BacklinkOf  int32 `json:"x-backlink-of"`
	}
	if err := json.Unmarshal(rawProp, &ext); err != nil {
		return objectdb.ColumnDef{}, fmt.Errorf("decode vendor extensions: %w", err)
	}

	kind, elemKind, err := resolveKind(prop)
	if err != nil {
		return objectdb.ColumnDef{}, err
	}
	switch {
	case ext.BacklinkOf != 0:
		kind = objectdb.KindBacklink
	case ext.TargetTable != 0 && kind == objectdb.KindList:
		elemKind = objectdb.KindLink
	case ext.TargetTable != 0:
		kind, elemKind = objectdb.KindLink, objectdb.KindLink
	}

	attrs := objectdb.AttrNone
	if ext.List || kind == objectdb.KindList {
		attrs |= objectdb.AttrList
	}
	if ext.Nullable || !required {
		attrs |= objectdb.AttrNullable
	}
	if ext.Indexed {
		attrs |= objectdb.AttrIndexed
	}
	if ext.StringEnum {
		attrs |= objectdb.AttrStringEnum
	}

	return objectdb.ColumnDef{
		Name:         name,
		Key:          objectdb.ColKey(ext.ColKey),
		Kind:         kind,
		Attrs:        attrs,
		ElementKind:  elemKind,
		TargetTable:  objectdb.TableKey(ext.TargetTable),
		OriginColumn: objectdb.ColKey(ext.BacklinkOf),
	}, nil
}

// resolveKind maps a JSON Schema property's "type" (and, for arrays,
// its "items" type) onto the engine's ValueKind enum (§3). Link and
// backlink columns have no standard JSON Schema representation of their
// own — they are plain "integer" properties distinguished purely by
// carrying an x-target-table or x-backlink-of extension, resolved by
// the caller rather than here since that distinction lives in the
// vendor extensions, not the standard schema vocabulary.
func resolveKind(prop *gojsonschema.Schema) (kind, elem objectdb.ValueKind, err error) {
	t := prop.Type
	switch t {
	case "string":
		if prop.Format == "date-time" {
			return objectdb.KindTimestamp, objectdb.KindTimestamp, nil
		}
		return objectdb.KindString, objectdb.KindString, nil
	case "integer":
		return objectdb.KindInt, objectdb.KindInt, nil
	case "number":
		return objectdb.KindDouble, objectdb.KindDouble, nil
	case "boolean":
		return objectdb.KindBool, objectdb.KindBool, nil
	case "array":
		if prop.Items == nil {
			return objectdb.KindList, objectdb.KindMixed, nil
		}
		itemKind, _, err := resolveKind(prop.Items)
		if err != nil {
			return 0, 0, err
		}
		return objectdb.KindList, itemKind, nil
	case "":
		return objectdb.KindMixed, objectdb.KindMixed, nil
	default:
		return 0, 0, fmt.Errorf("unsupported JSON Schema type %q", t)
	}
}
