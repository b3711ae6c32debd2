package duckstore

import (
	"context"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersKey objectdb.TableKey = 1

const (
	colName objectdb.ColKey = 1
	colAge  objectdb.ColKey = 2
)

func newUsersTable(t *testing.T) *Table {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE users (id BIGINT, name VARCHAR, age BIGINT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users VALUES (3, 'carol', 40), (1, 'alice', 30), (2, 'bob', 25)`)
	require.NoError(t, err)

	columns := []Column{
		{Name: "name", Key: colName, Kind: objectdb.KindString},
		{Name: "age", Key: colAge, Kind: objectdb.KindInt},
	}
	return NewTable(db, usersKey, "users", "id", columns, 2, colName)
}

func TestClusters_PagesInKeyOrder(t *testing.T) {
	users := newUsersTable(t)
	ctx := context.Background()

	iter, err := users.Clusters(ctx, usersKey)
	require.NoError(t, err)
	defer iter.Close()

	var keys []objectdb.ObjKey
	for {
		cluster, ok, err := iter.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		for row := 0; row < cluster.Size(); row++ {
			key, err := cluster.GetRealKey(row)
			require.NoError(t, err)
			keys = append(keys, key)
		}
	}
	assert.Equal(t, []objectdb.ObjKey{1, 2, 3}, keys)
}

func TestClusters_WrongTable(t *testing.T) {
	users := newUsersTable(t)
	_, err := users.Clusters(context.Background(), objectdb.TableKey(99))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	users := newUsersTable(t)

	obj, err := users.Resolve(context.Background(), usersKey, 2)
	require.NoError(t, err)

	v, err := obj.Get(colName)
	require.NoError(t, err)
	assert.Equal(t, "bob", v.Str())

	_, err = users.Resolve(context.Background(), usersKey, 99)
	assert.Error(t, err)
}

func TestIndex_FindFirstAndFindAll(t *testing.T) {
	users := newUsersTable(t)

	ix := users.Index(usersKey, colName)
	require.NotNil(t, ix)

	key, ok, err := ix.FindFirst(objectdb.StringValue("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, objectdb.ObjKey(1), key)

	assert.Nil(t, users.Index(usersKey, colAge))
}

func TestVersion_TracksRowCount(t *testing.T) {
	users := newUsersTable(t)
	ctx := context.Background()

	v0, err := users.Version(ctx, usersKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v0)

	_, err = users.db.ExecContext(ctx, `INSERT INTO users VALUES (4, 'dave', 50)`)
	require.NoError(t, err)

	v1, err := users.Version(ctx, usersKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v1)
}
