package leaf

import (
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntColumn() *Column {
	return NewColumn(
		objectdb.KindInt,
		[]objectdb.Value{objectdb.IntValue(10), {}, objectdb.IntValue(30)},
		[]bool{true, false, true},
		[]objectdb.ObjKey{5, 6, 7},
	)
}

func TestColumn_GetReturnsNullForAbsentRow(t *testing.T) {
	c := newIntColumn()
	v, err := c.Get(1)
	require.NoError(t, err)
	assert.True(t, v.Null)
	assert.Equal(t, objectdb.KindInt, v.Kind)
}

func TestColumn_GetReturnsStoredValue(t *testing.T) {
	c := newIntColumn()
	v, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.Int())
}

func TestColumn_GetOutOfRange(t *testing.T) {
	c := newIntColumn()
	_, err := c.Get(3)
	assert.Error(t, err)
}

func TestColumn_FindFirstSkipsNullsUnlessSearchingForNull(t *testing.T) {
	c := newIntColumn()
	row, err := c.FindFirst(objectdb.IntValue(30), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	row, err = c.FindFirst(objectdb.NullValue(objectdb.KindInt), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
}

func TestColumn_FindFirstNotFound(t *testing.T) {
	c := newIntColumn()
	row, err := c.FindFirst(objectdb.IntValue(999), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, objectdb.NotFound, row)
}

func TestColumn_LowerBoundKey(t *testing.T) {
	c := newIntColumn()
	assert.Equal(t, 0, c.LowerBoundKey(5))
	assert.Equal(t, 1, c.LowerBoundKey(6))
	assert.Equal(t, 2, c.LowerBoundKey(7))
	assert.Equal(t, objectdb.NotFound, c.LowerBoundKey(8))
	assert.Equal(t, 0, c.LowerBoundKey(0))
}

func TestColumn_Size(t *testing.T) {
	c := newIntColumn()
	assert.Equal(t, 3, c.Size())
}
