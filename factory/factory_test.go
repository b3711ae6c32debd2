package factory

import (
	"context"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersTable objectdb.TableKey = 1
	colName    objectdb.ColKey   = 1
	colAge     objectdb.ColKey   = 2
)

func newUsersFixture() objectdb.Table {
	store := memstore.NewBuilder(usersTable, 4).
		Row(1, map[objectdb.ColKey]objectdb.Value{colName: objectdb.StringValue("alice"), colAge: objectdb.IntValue(30)}).
		Row(2, map[objectdb.ColKey]objectdb.Value{colName: objectdb.StringValue("bob"), colAge: objectdb.IntValue(25)}).
		Row(3, map[objectdb.ColKey]objectdb.Value{colName: objectdb.StringValue("carol"), colAge: objectdb.IntValue(40)}).
		Build()

	registry := objectdb.NewStaticRegistry(objectdb.TableDef{
		Name: "users",
		Key:  usersTable,
		Columns: map[string]objectdb.ColumnDef{
			"name": {Name: "name", Key: colName, Kind: objectdb.KindString},
			"age":  {Name: "age", Key: colAge, Kind: objectdb.KindInt},
		},
	})

	return objectdb.Table{Key: usersTable, Storage: store, Schema: registry, Objects: store}
}

func TestNewEngineWithConfig_NoTables(t *testing.T) {
	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), nil, nil)

	assert.Nil(t, engine)
	assert.Error(t, err)
}

func TestNewEngineWithConfig_DuplicateTableKey(t *testing.T) {
	t1 := newUsersFixture()
	t2 := newUsersFixture() // same Key on purpose

	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{t1, t2}, nil)

	assert.Nil(t, engine)
	assert.Error(t, err)
}

func TestNewEngineWithConfig_InvalidConfig(t *testing.T) {
	cfg := objectdb.DefaultConfig()
	cfg.Query.MaxStringLength = 0

	engine, err := NewEngineWithConfig(cfg, []objectdb.Table{newUsersFixture()}, nil)

	assert.Nil(t, engine)
	assert.Error(t, err)
}

func TestNewEngineWithConfig_Success(t *testing.T) {
	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{newUsersFixture()}, nil)

	require.NoError(t, err)
	require.NotNil(t, engine)
}

func TestEngine_Build_UnknownTable(t *testing.T) {
	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{newUsersFixture()}, nil)
	require.NoError(t, err)

	_, err = engine.Build(context.Background(), objectdb.TableKey(99), `name == "alice"`, nil)
	assert.Error(t, err)
}

func TestEngine_Build_CountAndFindAll(t *testing.T) {
	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{newUsersFixture()}, nil)
	require.NoError(t, err)

	q, err := engine.Build(context.Background(), usersTable, `age > 26`, nil)
	require.NoError(t, err)

	count, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	view, err := q.FindAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.Size())
}

func TestEngine_Build_SyntaxError(t *testing.T) {
	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{newUsersFixture()}, nil)
	require.NoError(t, err)

	_, err = engine.Build(context.Background(), usersTable, `age >`, nil)
	assert.Error(t, err)
}

func withTableValidator(t *testing.T, v func([]objectdb.Table) (map[objectdb.TableKey]objectdb.Table, error)) {
	t.Helper()
	original := tableValidator
	tableValidator = v
	t.Cleanup(func() { tableValidator = original })
}

func TestNewEngineWithConfig_Unit_TableValidatorError(t *testing.T) {
	withTableValidator(t, func(tables []objectdb.Table) (map[objectdb.TableKey]objectdb.Table, error) {
		return nil, assert.AnError
	})

	engine, err := NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{newUsersFixture()}, nil)

	assert.Nil(t, engine)
	assert.Error(t, err)
}
