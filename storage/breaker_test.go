package storage

import (
	"context"
	"testing"
	"time"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersTable objectdb.TableKey = 1

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, time.Minute)
	assert.False(t, cb.IsOpen())

	cb.recordFailure()
	assert.False(t, cb.IsOpen())

	cb.recordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, time.Minute)
	cb.recordFailure()
	cb.recordFailure()
	require.True(t, cb.IsOpen())

	cb.recordSuccess()
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_FailuresOutsideWindowDontAccumulate(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Nanosecond, time.Minute)
	cb.recordFailure()
	time.Sleep(time.Millisecond)
	cb.recordFailure()
	assert.False(t, cb.IsOpen())
}

func TestGuardedStorage_FailsFastOnceOpen(t *testing.T) {
	inner := memstore.NewBuilder(usersTable, 4).Build()
	guarded := NewGuardedStorage(inner, 1, time.Minute, time.Minute)

	// Force a failure by asking for a table memstore doesn't know.
	_, err := guarded.Clusters(context.Background(), objectdb.TableKey(99))
	assert.Error(t, err)
	assert.True(t, guarded.Breaker.IsOpen())

	_, err = guarded.Clusters(context.Background(), usersTable)
	require.Error(t, err)
	qe, ok := err.(*objectdb.QueryError)
	require.True(t, ok)
	assert.Equal(t, "storage: circuit breaker open, backing store unavailable", qe.Unwrap().Error())
}

func TestGuardedStorage_PassesThroughOnSuccess(t *testing.T) {
	inner := memstore.NewBuilder(usersTable, 4).
		Row(1, map[objectdb.ColKey]objectdb.Value{}).
		Build()
	guarded := NewGuardedStorage(inner, 2, time.Minute, time.Minute)

	iter, err := guarded.Clusters(context.Background(), usersTable)
	require.NoError(t, err)
	require.NotNil(t, iter)
	assert.False(t, guarded.Breaker.IsOpen())
}
