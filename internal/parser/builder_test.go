package parser

import (
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersTable objectdb.TableKey = 1
	colA       objectdb.ColKey   = 1
	colName    objectdb.ColKey   = 2
	colAge     objectdb.ColKey   = 3
)

func newUsersTable() objectdb.Table {
	registry := objectdb.NewStaticRegistry(objectdb.TableDef{
		Name: "users",
		Key:  usersTable,
		Columns: map[string]objectdb.ColumnDef{
			"a":    {Name: "a", Key: colA, Kind: objectdb.KindString},
			"name": {Name: "name", Key: colName, Kind: objectdb.KindString},
			"age":  {Name: "age", Key: colAge, Kind: objectdb.KindInt},
		},
	})
	return objectdb.Table{Key: usersTable, Schema: registry}
}

func columnName(table objectdb.TableKey, col objectdb.ColKey) string {
	switch col {
	case colA:
		return "a"
	case colName:
		return "name"
	case colAge:
		return "age"
	default:
		return ""
	}
}

// compileDescribe parses predicate and compiles it against the fixture
// table, returning the full rendered description (predicate plus
// descriptor suffix), mirroring Query.GetDescription without needing a
// bound storage/objects pair.
func compileDescribe(t *testing.T, predicate string) string {
	t.Helper()
	q, err := Parse(predicate)
	require.NoError(t, err)

	b := NewBuilder(newUsersTable(), nil, nil)
	built, err := b.Build(q)
	require.NoError(t, err)

	state := &condnode.DescribeState{Table: usersTable, ColumnName: columnName}
	out := built.Tree.Describe(state)
	if suffix := built.Ordering.Describe(columnName); suffix != "" {
		out += " " + suffix
	}
	return out
}

func TestBuilder_EqualOrChainFusesIntoIn(t *testing.T) {
	desc := compileDescribe(t, `a == "0" or a == "1" or a == "2"`)
	assert.Contains(t, desc, "IN (", "three same-column == branches must fuse into IN per the documented example")
	assert.Regexp(t, `^a IN \(.*\)$`, desc)
}

func TestBuilder_EqualOrChainRoundTrips(t *testing.T) {
	first := compileDescribe(t, `a == "0" or a == "1" or a == "2"`)
	second := compileDescribe(t, first)
	assert.Equal(t, first, second, "parse(describe()).describe() must be a fixed point")
}

func TestBuilder_TwoNeedlesBelowFusionThresholdStayDisjunction(t *testing.T) {
	desc := compileDescribe(t, `a == "0" or a == "1"`)
	assert.NotContains(t, desc, "IN (")
	assert.Contains(t, desc, "OR")
}

func TestBuilder_MixedColumnOrChainDoesNotFuse(t *testing.T) {
	desc := compileDescribe(t, `a == "0" or name == "1" or a == "2"`)
	assert.NotContains(t, desc, "IN (")
}

func TestBuilder_LiteralInListFusesSameAsOrChain(t *testing.T) {
	viaIn := compileDescribe(t, `a IN ("0", "1", "2")`)
	viaOr := compileDescribe(t, `a == "0" or a == "1" or a == "2"`)
	assert.Equal(t, viaIn, viaOr)
}

func TestBuilder_SortDistinctLimitRoundTrips(t *testing.T) {
	first := compileDescribe(t, `TRUEPREDICATE SORT(name ASC) DISTINCT(age) LIMIT(2)`)
	assert.Equal(t, `TRUEPREDICATE SORT(name) DISTINCT(age) LIMIT(2)`, first)

	second := compileDescribe(t, first)
	assert.Equal(t, first, second)
}

func TestBuilder_SortDescendingRoundTrips(t *testing.T) {
	first := compileDescribe(t, `TRUEPREDICATE SORT(age DESC)`)
	assert.Contains(t, first, "age DESC")
	assert.NotContains(t, first, "$col")

	second := compileDescribe(t, first)
	assert.Equal(t, first, second)
}

func TestBuilder_NotRoundTrips(t *testing.T) {
	first := compileDescribe(t, `NOT age > 26`)
	second := compileDescribe(t, first)
	assert.Equal(t, first, second)
}

func TestBuilder_ConjunctionRoundTrips(t *testing.T) {
	first := compileDescribe(t, `age > 26 AND name == "carol"`)
	second := compileDescribe(t, first)
	assert.Equal(t, first, second)
}
