package query

import (
	"context"
	"errors"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
	"github.com/lychee-technology/objectdb/internal/querytree"
	"github.com/lychee-technology/objectdb/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingTreeRunner is a treeRunner stub whose Bind always errors, used
// to exercise Query.Explain's error path without a second malformed
// predicate string.
type failingTreeRunner struct{}

func (failingTreeRunner) Bind(bool) error { return errors.New("bind failed") }
func (failingTreeRunner) FindFirst(context.Context) (objectdb.ObjKey, bool, error) {
	return 0, false, nil
}
func (failingTreeRunner) FindAll(context.Context) ([]objectdb.ObjKey, error) { return nil, nil }
func (failingTreeRunner) Count(context.Context) (int64, error)              { return 0, nil }
func (failingTreeRunner) Describe(*condnode.DescribeState) string           { return "" }
func (failingTreeRunner) Explain(*condnode.DescribeState) querytree.ExplainNode {
	return querytree.ExplainNode{}
}

var _ treeRunner = failingTreeRunner{}

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

func buildQuery(t *testing.T, predicate string) *Query {
	t.Helper()
	table := newUsersFixture()
	q, err := Build(table, nil, nil, predicate, nil)
	require.NoError(t, err)
	return q
}

func TestQuery_Explain_LeafNode(t *testing.T) {
	q := buildQuery(t, `age > 26`)

	en, err := q.Explain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `age > 26`, en.Description)
	assert.Equal(t, int64(3), en.Stats.Probes)
	assert.Equal(t, int64(2), en.Stats.Matches)
	assert.Empty(t, en.Children)
}

func TestQuery_Explain_ConjunctionWalksChildren(t *testing.T) {
	q := buildQuery(t, `age > 26 AND name == "carol"`)

	en, err := q.Explain(context.Background())
	require.NoError(t, err)

	require.Len(t, en.Children, 2)
	assert.Equal(t, `age > 26`, en.Children[0].Description)
	assert.Equal(t, `name == "carol"`, en.Children[1].Description)
	// CurrentStats on a conjunction sums its children's published
	// counters (so a nested conjunction reports sanely), not the
	// combined row count: age > 26 matches 2 rows, name == "carol"
	// matches 1.
	assert.Equal(t, int64(2), en.Children[0].Stats.Matches)
	assert.Equal(t, int64(1), en.Children[1].Stats.Matches)
}

func TestQuery_Explain_UsesColumnNamesNotKeys(t *testing.T) {
	q := buildQuery(t, `name == "alice"`)

	en, err := q.Explain(context.Background())
	require.NoError(t, err)

	assert.Contains(t, en.Description, "name")
	assert.NotContains(t, en.Description, "col1")
}

func TestQuery_Explain_PropagatesBindError(t *testing.T) {
	table := newUsersFixture()
	q, err := Build(table, nil, nil, `age > 26`, nil)
	require.NoError(t, err)

	// Swap in a treeRunner whose Bind always fails to exercise Explain's
	// error path without depending on a second malformed predicate.
	q.tree = failingTreeRunner{}

	_, err = q.Explain(context.Background())
	assert.Error(t, err)
}
