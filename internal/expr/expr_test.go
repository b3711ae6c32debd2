package expr

import (
	"math"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralExpr_Describe(t *testing.T) {
	e := NewLiteral(objectdb.IntValue(26))
	assert.Equal(t, "26", e.Describe())
}

func TestAggregateExpr_SumAvgMinMax(t *testing.T) {
	ints := objectdb.ListValue(objectdb.KindInt, []objectdb.Value{
		objectdb.IntValue(10), objectdb.IntValue(20), objectdb.IntValue(30),
	})
	source := NewLiteral(ints)

	sum, err := NewAggregate(AggSum, source).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(60), sum.Int())

	avg, err := NewAggregate(AggAvg, source).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, avg.Float64())

	min, err := NewAggregate(AggMin, source).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), min.Int())

	max, err := NewAggregate(AggMax, source).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(30), max.Int())
}

func TestAggregateExpr_EmptyListYieldsNull(t *testing.T) {
	empty := objectdb.ListValue(objectdb.KindInt, nil)
	v, err := NewAggregate(AggSum, NewLiteral(empty)).Evaluate(0)
	require.NoError(t, err)
	assert.True(t, v.Null)
}

func TestAggregateExpr_CountOverString(t *testing.T) {
	v, err := NewAggregate(AggCount, NewLiteral(objectdb.StringValue("hello"))).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int())
}

func TestAggregateExpr_SizeOverList(t *testing.T) {
	list := objectdb.ListValue(objectdb.KindInt, []objectdb.Value{objectdb.IntValue(1), objectdb.IntValue(2)})
	v, err := NewAggregate(AggSize, NewLiteral(list)).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int())
}

func TestAggregateExpr_IntSumWrapsTwosComplement(t *testing.T) {
	list := objectdb.ListValue(objectdb.KindInt, []objectdb.Value{
		objectdb.IntValue(math.MaxInt64), objectdb.IntValue(1),
	})
	v, err := NewAggregate(AggSum, NewLiteral(list)).Evaluate(0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v.Int())
}

func TestAggregateExpr_RejectsNonListSource(t *testing.T) {
	_, err := NewAggregate(AggSum, NewLiteral(objectdb.IntValue(5))).Evaluate(0)
	assert.Error(t, err)
}

func TestComparisonExpr_NullSemantics(t *testing.T) {
	lhs := NewLiteral(objectdb.NullValue(objectdb.KindInt))
	rhs := NewLiteral(objectdb.NullValue(objectdb.KindInt))

	eq := NewComparison(CmpEqual, lhs, rhs)
	ok, err := eq.EvaluateBool(0)
	require.NoError(t, err)
	assert.True(t, ok, "null == null")

	gt := NewComparison(CmpGreater, lhs, NewLiteral(objectdb.IntValue(1)))
	ok, err = gt.EvaluateBool(0)
	require.NoError(t, err)
	assert.False(t, ok, "null compared via ordering op never holds")
}

func TestComparisonExpr_Describe(t *testing.T) {
	e := NewComparison(CmpGreater, NewLiteral(objectdb.IntValue(26)), NewLiteral(objectdb.IntValue(1)))
	assert.Equal(t, "26 > 1", e.Describe())
}

func TestComparisonExpr_RejectsListOperands(t *testing.T) {
	list := objectdb.ListValue(objectdb.KindInt, []objectdb.Value{objectdb.IntValue(1)})
	e := NewComparison(CmpEqual, NewLiteral(list), NewLiteral(list))
	_, err := e.EvaluateBool(0)
	assert.Error(t, err)
}
