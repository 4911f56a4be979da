package cache

import "context"

// Cache is a sharded, weight-bounded in-memory key/value cache interface.
// All methods are safe for concurrent use by multiple goroutines.
//
// Capacity is measured in caller-defined weight units rather than entries;
// when the budget is exceeded, each shard displaces its approximately
// least-recently-used entries with a clock (second chance) sweep.
// Typical complexity for operations is amortized O(1): a map lookup plus
// constant ring work under a shard lock. A hit costs one atomic bit flip
// under a read lock.
type Cache[K comparable, V any] interface {
	// Get returns the value for k and a boolean flag indicating presence.
	// On hit, the entry's recency bit is set for the clock sweep.
	Get(k K) (V, bool)

	// Peek returns the value for k without updating recency or hit/miss
	// statistics.
	Peek(k K) (V, bool)

	// Set inserts or replaces k→v and reports whether the entry is
	// resident afterwards. An entry heavier than its shard's capacity is
	// rejected and the cache is left unchanged.
	Set(k K, v V) bool

	// Add inserts k→v only if k is not resident.
	// Returns false if the key already exists or the entry does not fit.
	Add(k K, v V) bool

	// GetOrCompute returns the value for k, running compute on miss.
	// Concurrent callers for the same missing key coalesce onto a single
	// computation and all receive the same value or error. compute runs
	// with no shard lock held. Cancelling ctx while waiting abandons only
	// this caller; the computation keeps running for the others.
	GetOrCompute(ctx context.Context, k K, compute func(context.Context) (V, error)) (V, error)

	// GetOrLoad is GetOrCompute using the Loader configured in Options.
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Remove deletes k if present and returns the removed value.
	Remove(k K) (V, bool)

	// Len returns the total number of resident entries across all shards.
	Len() int

	// Weight returns the total resident weight across all shards.
	Weight() uint64

	// Capacity returns the configured MaxWeight.
	Capacity() uint64

	// Stats returns a point-in-time snapshot of the cache counters.
	Stats() Stats

	// Close marks the cache closed; subsequent operations become no-ops.
	// Close is idempotent and always returns nil.
	Close() error
}
