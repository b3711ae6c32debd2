package ordering

import (
	"context"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersTable objectdb.TableKey = 1
const colAge objectdb.ColKey = 1
const colName objectdb.ColKey = 2

// fakeObject/fakeSource mirror the minimal objectdb.Object/ObjectSource
// fakes used across the engine's other package tests.
type fakeObject struct {
	cols map[objectdb.ColKey]objectdb.Value
}

func (o *fakeObject) Key() objectdb.ObjKey                                          { return 0 }
func (o *fakeObject) Get(col objectdb.ColKey) (objectdb.Value, error)               { return o.cols[col], nil }
func (o *fakeObject) GetBacklinks(col objectdb.ColKey) ([]objectdb.ObjKey, error)    { return nil, nil }
func (o *fakeObject) GetTargetTable(col objectdb.ColKey) (objectdb.TableKey, error) { return 0, nil }

type fakeSource struct {
	rows map[objectdb.ObjKey]*fakeObject
}

func (s *fakeSource) Resolve(ctx context.Context, table objectdb.TableKey, key objectdb.ObjKey) (objectdb.Object, error) {
	return s.rows[key], nil
}

func newFixture() *fakeSource {
	return &fakeSource{rows: map[objectdb.ObjKey]*fakeObject{
		1: {cols: map[objectdb.ColKey]objectdb.Value{colAge: objectdb.IntValue(30), colName: objectdb.StringValue("alice")}},
		2: {cols: map[objectdb.ColKey]objectdb.Value{colAge: objectdb.IntValue(25), colName: objectdb.StringValue("bob")}},
		3: {cols: map[objectdb.ColKey]objectdb.Value{colAge: objectdb.IntValue(40), colName: objectdb.StringValue("carol")}},
	}}
}

func columnNames(table objectdb.TableKey, col objectdb.ColKey) string {
	switch col {
	case colAge:
		return "age"
	case colName:
		return "name"
	default:
		return ""
	}
}

func TestSortDescriptor_AscendingByColumn(t *testing.T) {
	source := newFixture()
	ord := New(usersTable, source)
	ord.Append(Sort(SortKey{Col: colAge, Dir: objectdb.Ascending}))

	out, err := ord.Apply(context.Background(), []objectdb.ObjKey{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{2, 1, 3}, out)
}

func TestSortDescriptor_Descending(t *testing.T) {
	source := newFixture()
	ord := New(usersTable, source)
	ord.Append(Sort(SortKey{Col: colAge, Dir: objectdb.Descending}))

	out, err := ord.Apply(context.Background(), []objectdb.ObjKey{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{3, 1, 2}, out)
}

func TestSortDescriptor_Describe_UsesColumnNameNotRawKey(t *testing.T) {
	d := Sort(SortKey{Col: colName, Dir: objectdb.Ascending})
	desc := d.Describe(usersTable, columnNames)
	assert.Equal(t, "SORT(name)", desc)
	assert.NotContains(t, desc, "$col")
}

func TestSortDescriptor_Describe_FallsBackWithoutResolver(t *testing.T) {
	d := Sort(SortKey{Col: colName, Dir: objectdb.Descending})
	desc := d.Describe(usersTable, nil)
	assert.Contains(t, desc, "$col")
	assert.Contains(t, desc, "DESC")
}

func TestDistinctDescriptor_KeepsFirstOccurrence(t *testing.T) {
	source := &fakeSource{rows: map[objectdb.ObjKey]*fakeObject{
		1: {cols: map[objectdb.ColKey]objectdb.Value{colAge: objectdb.IntValue(30)}},
		2: {cols: map[objectdb.ColKey]objectdb.Value{colAge: objectdb.IntValue(30)}},
		3: {cols: map[objectdb.ColKey]objectdb.Value{colAge: objectdb.IntValue(40)}},
	}}
	ord := New(usersTable, source)
	ord.Append(Distinct(colAge))

	out, err := ord.Apply(context.Background(), []objectdb.ObjKey{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{1, 3}, out)
}

func TestDistinctDescriptor_Describe_UsesColumnName(t *testing.T) {
	d := Distinct(colAge)
	assert.Equal(t, "DISTINCT(age)", d.Describe(usersTable, columnNames))
}

func TestLimitDescriptor_TruncatesAndRecordsExcluded(t *testing.T) {
	source := newFixture()
	ord := New(usersTable, source)
	limit := Limit(2)
	ord.Append(limit)

	out, err := ord.Apply(context.Background(), []objectdb.ObjKey{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{1, 2}, out)
	assert.Equal(t, 1, limit.ExcludedByLimit())
}

func TestLimitDescriptor_RejectsNegative(t *testing.T) {
	source := newFixture()
	ord := New(usersTable, source)
	ord.Append(Limit(-1))

	_, err := ord.Apply(context.Background(), []objectdb.ObjKey{1})
	assert.Error(t, err)
}

func TestDescriptorOrdering_Describe_RoundTrippableSuffix(t *testing.T) {
	source := newFixture()
	ord := New(usersTable, source)
	ord.Append(Sort(SortKey{Col: colName, Dir: objectdb.Ascending}))
	ord.Append(Distinct(colAge))
	ord.Append(Limit(2))

	desc := ord.Describe(columnNames)
	assert.Equal(t, "SORT(name) DISTINCT(age) LIMIT(2)", desc)
}

func TestDescriptorOrdering_SortThenLimitIsOrderDependent(t *testing.T) {
	source := newFixture()
	ord := New(usersTable, source)
	ord.Append(Sort(SortKey{Col: colAge, Dir: objectdb.Ascending}))
	ord.Append(Limit(2))

	out, err := ord.Apply(context.Background(), []objectdb.ObjKey{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{2, 1}, out)
}
