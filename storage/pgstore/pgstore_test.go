package pgstore

import (
	"context"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersKey objectdb.TableKey = 1

const (
	colName objectdb.ColKey = 1
	colTags objectdb.ColKey = 2
)

func newUsersTable(t *testing.T) (*Table, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	columns := []Column{
		{Name: "name", Key: colName, Kind: objectdb.KindString},
		{Name: "tags", Key: colTags, Kind: objectdb.KindList, List: true, Elem: objectdb.KindString},
	}
	return NewTable(mock, usersKey, "users", "id", columns, 10, colName), mock
}

func TestClusters_ScansScalarAndListColumns(t *testing.T) {
	users, mock := newUsersTable(t)

	rows := pgxmock.NewRows([]string{"id", "name", "tags"}).
		AddRow(int64(1), "alice", []string{"admin", "eu"}).
		AddRow(int64(2), "bob", []string{})
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(rows)

	iter, err := users.Clusters(context.Background(), usersKey)
	require.NoError(t, err)
	defer iter.Close()

	cluster, ok, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, cluster.Size())

	leaf, err := cluster.Leaf(colName)
	require.NoError(t, err)
	v, err := leaf.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Str())

	tagsLeaf, err := cluster.Leaf(colTags)
	require.NoError(t, err)
	tags, err := tagsLeaf.Get(0)
	require.NoError(t, err)
	require.Len(t, tags.Elems(), 2)
	assert.Equal(t, "admin", tags.Elems()[0].Str())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClusters_WrongTable(t *testing.T) {
	users, _ := newUsersTable(t)
	_, err := users.Clusters(context.Background(), objectdb.TableKey(99))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	users, mock := newUsersTable(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(uint64(5)))

	v, err := users.Version(context.Background(), usersKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndex_UnindexedColumnReturnsNil(t *testing.T) {
	users, _ := newUsersTable(t)
	assert.Nil(t, users.Index(usersKey, colTags))
	assert.NotNil(t, users.Index(usersKey, colName))
}

func TestSanitize_QuotesIdentifier(t *testing.T) {
	assert.Equal(t, `"users"`, sanitize("users"))
}
