// Package storage holds cross-cutting helpers shared by the storage
// adapters (duckstore, pgstore, s3snap, memstore, jsonschema) rather
// than belonging to any one of them.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/lychee-technology/objectdb"
)

// CircuitBreaker is a lightweight in-memory circuit breaker: once
// threshold failures land within window, it opens for openDuration and
// every call is rejected without reaching the underlying adapter.
// Generalizes the teacher's CircuitBreaker (internal/circuit_breaker.go,
// originally a single global guarding DuckDB calls) into a reusable
// type any storage adapter can wrap itself with.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
}

// NewCircuitBreaker creates a configured circuit breaker.
func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.failures = append([]time.Time{}, cb.failures[i:]...)
	}
	cb.failures = append(cb.failures, now)

	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.openDuration)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// IsOpen reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}

// GuardedStorage wraps an objectdb.Storage with a CircuitBreaker: once
// open, Clusters fails fast with an IOError instead of reaching the
// backing adapter, the same protection the teacher applied ad hoc to
// DuckDB calls via a package-global breaker.
type GuardedStorage struct {
	objectdb.Storage
	Breaker *CircuitBreaker
}

// NewGuardedStorage wraps storage with a fresh breaker.
func NewGuardedStorage(s objectdb.Storage, threshold int, window, openDuration time.Duration) *GuardedStorage {
	return &GuardedStorage{Storage: s, Breaker: NewCircuitBreaker(threshold, window, openDuration)}
}

func (g *GuardedStorage) Clusters(ctx context.Context, table objectdb.TableKey) (objectdb.ClusterIterator, error) {
	if g.Breaker.IsOpen() {
		return nil, objectdb.NewIOError(errBreakerOpen)
	}
	it, err := g.Storage.Clusters(ctx, table)
	if err != nil {
		g.Breaker.recordFailure()
		return nil, err
	}
	g.Breaker.recordSuccess()
	return it, nil
}

var errBreakerOpen = breakerOpenError{}

type breakerOpenError struct{}

func (breakerOpenError) Error() string { return "storage: circuit breaker open, backing store unavailable" }
