package jsonschema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSchema = `{
  "type": "object",
  "x-table-key": 1,
  "x-primary-key": "id",
  "required": ["id", "name"],
  "properties": {
    "id":   {"type": "integer", "x-col-key": 1},
    "name": {"type": "string", "x-col-key": 2, "x-indexed": true},
    "tags": {"type": "array", "items": {"type": "string"}, "x-col-key": 3, "x-list": true},
    "bio":  {"type": "string", "x-col-key": 4, "x-nullable": true}
  }
}`

func TestParseTable(t *testing.T) {
	def, err := ParseTable("users", []byte(usersSchema))
	require.NoError(t, err)

	assert.Equal(t, "users", def.Name)
	assert.Equal(t, objectdb.TableKey(1), def.Key)
	assert.Equal(t, "id", def.PrimaryKeyName)
	require.Len(t, def.Columns, 4)

	name, ok := def.Column("name")
	require.True(t, ok)
	assert.Equal(t, objectdb.KindString, name.Kind)
	assert.True(t, name.Attrs.Has(objectdb.AttrIndexed))
	assert.False(t, name.Attrs.Has(objectdb.AttrNullable))

	bio, ok := def.Column("bio")
	require.True(t, ok)
	assert.True(t, bio.Attrs.Has(objectdb.AttrNullable))

	tags, ok := def.Column("tags")
	require.True(t, ok)
	assert.Equal(t, objectdb.KindList, tags.Kind)
	assert.Equal(t, objectdb.KindString, tags.ElementKind)
	assert.True(t, tags.Attrs.Has(objectdb.AttrList))
}

func TestParseTable_UnsupportedType(t *testing.T) {
	_, err := ParseTable("bad", []byte(`{"properties": {"x": {"type": "object", "x-col-key": 1}}}`))
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.schema.json"), []byte(usersSchema), 0o644))

	registry, err := LoadDirectory(dir)
	require.NoError(t, err)

	def, err := registry.TableByName("users")
	require.NoError(t, err)
	assert.Equal(t, objectdb.TableKey(1), def.Key)
}

func TestLoadDirectory_NoSchemaFiles(t *testing.T) {
	_, err := LoadDirectory(t.TempDir())
	assert.Error(t, err)
}

func TestLoadDirectory_MissingDirectory(t *testing.T) {
	_, err := LoadDirectory(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
