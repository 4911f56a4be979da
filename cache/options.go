package cache

import (
	"context"

	"go.uber.org/zap"
)

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity — displaced by the clock sweep to satisfy the weight bound.
	EvictCapacity EvictReason = iota
	// EvictRemoved — explicitly removed by the caller.
	EvictRemoved
	// EvictReplaced — overwritten by an insert for the same key.
	EvictReplaced
)

// Weigher computes the weight of an entry. It is called once per insert,
// before any shard lock is taken, and the result is fixed for the lifetime
// of the entry: mutating a cached value does not re-weigh it.
// A zero weight is allowed; such entries consume no capacity, so inserting
// them never displaces anything (a later sweep may still pass over them).
type Weigher[K comparable, V any] func(k K, v V) uint64

// Metrics exposes cache-level observability hooks. All signals are deltas,
// so any number of shards can feed one implementation. Occupancy is not a
// delta; export it by polling Len/Weight (see metrics/prom.ObserveOccupancy).
// A NoopMetrics implementation is provided and used by default.
// Evict may be invoked under a shard lock; keep implementations cheap.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
}

// Options configures the cache behavior. Zero values are safe;
// sane defaults are applied in New():
//   - nil Weigher  => UnitWeigher (MaxWeight acts as an entry count)
//   - nil Hasher   => util.Hash64 (xxhash over strings, bytes, integers)
//   - Shards <= 0  => auto (≈ 2*GOMAXPROCS, rounded up to a power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => zap.NewNop()
type Options[K comparable, V any] struct {
	// MaxWeight is the total weight budget across all shards. Required;
	// New panics if it is zero. The budget is split evenly between shards,
	// so an entry heavier than its shard's slice can never be admitted.
	MaxWeight uint64

	// Shards is the shard-count hint. If <= 0 an automatic value is
	// chosen, never exceeding MaxWeight; any positive value is rounded up
	// to the next power of two. More shards reduce lock contention but
	// fragment MaxWeight into smaller per-shard budgets.
	Shards int

	// Weigher computes the per-entry weight. nil => every entry weighs 1.
	Weigher Weigher[K, V]

	// Hasher overrides key hashing for shard selection. The default
	// handles strings, byte arrays, integers, and fmt.Stringer, and
	// panics on anything else.
	Hasher func(K) uint64

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// Lifecycle callbacks. Both run after the shard lock is released, so
	// they may call back into the cache freely; by the time a callback
	// observes an entry the shard may already have moved on.
	//
	// OnInsert fires for every admitted value, including overwrites.
	OnInsert func(k K, v V)
	// OnEvict fires whenever a resident entry leaves the cache, with the
	// reason (capacity sweep, explicit removal, or replacement).
	OnEvict func(k K, v V, reason EvictReason)

	// Metrics receives Hit/Miss/Evict signals.
	Metrics Metrics

	// Logger records construction and close events at Debug level.
	// It is never used on the per-operation path. nil => zap.NewNop().
	Logger *zap.Logger
}
