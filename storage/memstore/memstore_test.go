package memstore

import (
	"context"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersTable  objectdb.TableKey = 1
	ordersTable objectdb.TableKey = 2
	colName     objectdb.ColKey   = 1
	colAge      objectdb.ColKey   = 2
	colOwner    objectdb.ColKey   = 3
)

func newUsers(clusterSize int) *Table {
	return NewBuilder(usersTable, clusterSize).
		Index(colName).
		Row(3, map[objectdb.ColKey]objectdb.Value{colName: objectdb.StringValue("carol"), colAge: objectdb.IntValue(40)}).
		Row(1, map[objectdb.ColKey]objectdb.Value{colName: objectdb.StringValue("alice"), colAge: objectdb.IntValue(30)}).
		Row(2, map[objectdb.ColKey]objectdb.Value{colName: objectdb.StringValue("bob"), colAge: objectdb.IntValue(25)}).
		Build()
}

func TestBuild_SortsRowsByKey(t *testing.T) {
	users := newUsers(2)

	ctx := context.Background()
	iter, err := users.Clusters(ctx, usersTable)
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

func TestClusters_ChunksByClusterSize(t *testing.T) {
	users := newUsers(2)

	ctx := context.Background()
	iter, err := users.Clusters(ctx, usersTable)
	require.NoError(t, err)
	defer iter.Close()

	cluster, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, cluster.Size())

	cluster, ok, err = iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, cluster.Size())

	_, ok, err = iter.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClusters_WrongTable(t *testing.T) {
	users := newUsers(2)
	_, err := users.Clusters(context.Background(), ordersTable)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	users := newUsers(4)

	obj, err := users.Resolve(context.Background(), usersTable, 2)
	require.NoError(t, err)
	assert.Equal(t, objectdb.ObjKey(2), obj.Key())

	name, err := obj.Get(colName)
	require.NoError(t, err)
	assert.Equal(t, "bob", name.Str())

	_, err = users.Resolve(context.Background(), usersTable, 99)
	assert.Error(t, err)
}

func TestIndex_FindFirstAndFindAll(t *testing.T) {
	users := newUsers(4)

	ix := users.Index(usersTable, colName)
	require.NotNil(t, ix)

	key, ok, err := ix.FindFirst(objectdb.StringValue("bob"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, objectdb.ObjKey(2), key)

	_, ok, err = ix.FindFirst(objectdb.StringValue("zoe"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndex_UnindexedColumnReturnsNil(t *testing.T) {
	users := newUsers(4)
	assert.Nil(t, users.Index(usersTable, colAge))
}

func TestVersion_BumpsOnDemand(t *testing.T) {
	users := newUsers(4)

	v0, err := users.Version(context.Background(), usersTable)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v0)

	users.BumpVersion()
	v1, err := users.Version(context.Background(), usersTable)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)
}

func TestRegisterBacklinks(t *testing.T) {
	users := newUsers(4)
	orders := NewBuilder(ordersTable, 4).
		TargetTable(colOwner, usersTable).
		Row(10, map[objectdb.ColKey]objectdb.Value{colOwner: objectdb.LinkValue(1)}).
		Row(11, map[objectdb.ColKey]objectdb.Value{colOwner: objectdb.LinkValue(1)}).
		Row(12, map[objectdb.ColKey]objectdb.Value{colOwner: objectdb.LinkValue(2)}).
		Build()

	users.RegisterBacklinks(colOwner, orders, colOwner)

	obj, err := users.Resolve(context.Background(), usersTable, 1)
	require.NoError(t, err)
	backlinks, err := obj.GetBacklinks(colOwner)
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{10, 11}, backlinks)
}

func TestColumnLeaf_FindFirst(t *testing.T) {
	users := newUsers(4)

	ctx := context.Background()
	iter, err := users.Clusters(ctx, usersTable)
	require.NoError(t, err)
	defer iter.Close()

	cluster, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	leaf, err := cluster.Leaf(colAge)
	require.NoError(t, err)

	row, err := leaf.FindFirst(objectdb.IntValue(25), 0, cluster.Size())
	require.NoError(t, err)
	assert.Equal(t, 1, row)
}
