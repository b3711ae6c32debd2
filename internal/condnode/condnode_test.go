package condnode

import (
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceLeaf is a minimal objectdb.Leaf backed by a plain slice, used to
// drive condition nodes without a real storage adapter.
type sliceLeaf struct {
	kind   objectdb.ValueKind
	values []objectdb.Value
}

func (l *sliceLeaf) Kind() objectdb.ValueKind { return l.kind }
func (l *sliceLeaf) Size() int                { return len(l.values) }
func (l *sliceLeaf) Get(row int) (objectdb.Value, error) { return l.values[row], nil }

func (l *sliceLeaf) FindFirst(value objectdb.Value, start, end int) (int, error) {
	for row := start; row < end && row < len(l.values); row++ {
		if l.values[row].Equal(value) {
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (l *sliceLeaf) LowerBoundKey(key objectdb.ObjKey) int { return int(key) }

// sliceCluster is a single-leaf objectdb.Cluster: real key == row offset.
type sliceCluster struct {
	col  objectdb.ColKey
	leaf *sliceLeaf
}

func (c *sliceCluster) Leaf(col objectdb.ColKey) (objectdb.Leaf, error) {
	if col != c.col {
		return &sliceLeaf{kind: c.leaf.kind}, nil
	}
	return c.leaf, nil
}

func (c *sliceCluster) GetRealKey(row int) (objectdb.ObjKey, error) { return objectdb.ObjKey(row), nil }
func (c *sliceCluster) LowerBoundKey(key objectdb.ObjKey) int       { return int(key) }
func (c *sliceCluster) Size() int                                   { return c.leaf.Size() }

const testCol objectdb.ColKey = 7

func nameState() *DescribeState {
	return &DescribeState{
		Table:      1,
		ColumnName: func(table objectdb.TableKey, col objectdb.ColKey) string { return "age" },
	}
}

func TestCompareNode_FindFirstLocal(t *testing.T) {
	leaf := &sliceLeaf{kind: objectdb.KindInt, values: []objectdb.Value{
		objectdb.IntValue(10), objectdb.IntValue(20), objectdb.IntValue(30),
	}}
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	n := NewCompareNode(testCol, OpGreater, objectdb.IntValue(15), 1.0)
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.Equal(t, int64(1), n.CurrentStats().Matches)

	// Scanning from row 2 finds the next match, 30 > 15.
	row, err = n.FindFirstLocal(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, row)
}

func TestCompareNode_Describe(t *testing.T) {
	n := NewCompareNode(testCol, OpGreater, objectdb.IntValue(26), 1.0)
	assert.Equal(t, "age > 26", n.Describe(nameState()))
}

func TestCompareNode_NullHandling(t *testing.T) {
	leaf := &sliceLeaf{kind: objectdb.KindInt, values: []objectdb.Value{
		objectdb.NullValue(objectdb.KindInt), objectdb.IntValue(5),
	}}
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	n := NewCompareNode(testCol, OpEqual, objectdb.NullValue(objectdb.KindInt), 1.0)
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, row)
}

func TestStringEqualNode_UnindexedScan(t *testing.T) {
	leaf := &sliceLeaf{kind: objectdb.KindString, values: []objectdb.Value{
		objectdb.StringValue("alice"), objectdb.StringValue("bob"), objectdb.StringValue("carol"),
	}}
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	n := &StringEqualNode{Col: testCol, Needle: "bob", CostConfig: StringCosts{UnindexedDT: 1}}
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.Equal(t, `age == "bob"`, n.Describe(nameState()))
}

func TestStringEqualInsNode_FoldsCase(t *testing.T) {
	leaf := &sliceLeaf{kind: objectdb.KindString, values: []objectdb.Value{
		objectdb.StringValue("Alice"), objectdb.StringValue("BOB"),
	}}
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	n := &StringEqualInsNode{Col: testCol, Needle: "bob", Costs: StringCosts{UnindexedDT: 1}}
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
}

func TestNeedleNode_DescribeUsesParenthesizedIn(t *testing.T) {
	n := NewNeedleNode(testCol, []string{"0", "1", "2"}, 20, 1.0)
	desc := n.Describe(nameState())
	assert.Regexp(t, `^age IN \(.*\)$`, desc)
	assert.NotContains(t, desc, "{")
	assert.NotContains(t, desc, "}")
}

func TestNeedleNode_FindFirstLocal(t *testing.T) {
	leaf := &sliceLeaf{kind: objectdb.KindString, values: []objectdb.Value{
		objectdb.StringValue("x"), objectdb.StringValue("1"), objectdb.StringValue("y"),
	}}
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	n := NewNeedleNode(testCol, []string{"0", "1", "2"}, 20, 1.0)
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
}

func TestNeedleNode_AddNeedleMergesIntoSet(t *testing.T) {
	n := NewNeedleNode(testCol, []string{"0"}, 20, 1.0)
	n.AddNeedle("1")
	n.AddNeedle("1")
	assert.Len(t, n.needles.ToSlice(), 2)
}

// newAlwaysFalseLeaf builds a leaf whose values never equal the needle
// used in TestNotNode_ReusesCacheAcrossOverlappingWindows, so the inner
// StringEqualNode always reports no match and NOT always holds.
func newAlwaysFalseLeaf(size int) *sliceLeaf {
	values := make([]objectdb.Value, size)
	for i := range values {
		values[i] = objectdb.StringValue("never")
	}
	return &sliceLeaf{kind: objectdb.KindString, values: values}
}

func TestNotNode_NegatesInner(t *testing.T) {
	leaf := &sliceLeaf{kind: objectdb.KindString, values: []objectdb.Value{
		objectdb.StringValue("a"), objectdb.StringValue("b"), objectdb.StringValue("a"),
	}}
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	inner := &StringEqualNode{Col: testCol, Needle: "a", CostConfig: StringCosts{UnindexedDT: 1}}
	n := NewNotNode(inner)
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, row, "row 0 matches inner so NOT excludes it")
}

func TestNotNode_Describe(t *testing.T) {
	inner := &StringEqualNode{Col: testCol, Needle: "a"}
	n := NewNotNode(inner)
	assert.Equal(t, `NOT (age == "a")`, n.Describe(nameState()))
}

func TestNotNode_ReusesCacheAcrossOverlappingWindows(t *testing.T) {
	leaf := newAlwaysFalseLeaf(10)
	cluster := &sliceCluster{col: testCol, leaf: leaf}

	inner := &StringEqualNode{Col: testCol, Needle: "never-matches-anything-else", CostConfig: StringCosts{UnindexedDT: 1}}
	n := NewNotNode(inner)
	require.NoError(t, n.Init(false))
	require.NoError(t, n.ClusterChanged(cluster))

	row, err := n.FindFirstLocal(0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, row)

	// A request fully inside the cached range reuses firstInKnown instead
	// of rescanning.
	row, err = n.FindFirstLocal(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, row)
}
