package cache

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/clockcache/clockcache/internal/util"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
var ErrNoLoader = errors.New("cache: no Loader provided")

// ErrClosed is returned by computing operations after Close. Plain lookups
// and inserts on a closed cache degrade to misses and dropped writes
// instead of erroring.
var ErrClosed = errors.New("cache: closed")

// Stats is a point-in-time snapshot of cache-wide counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	// Evictions counts capacity displacements only. Explicit removals and
	// overwrites are reported to Metrics with their own reason but do not
	// inflate this counter.
	Evictions uint64
	Entries   int
	Weight    uint64
}

// HitRate returns the percentage of lookups that hit, or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// cache is a sharded, weight-bounded in-memory KV store with approximate
// LRU (clock) eviction. All methods are safe for concurrent use by
// multiple goroutines.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Weigher  -> UnitWeigher
//   - nil Hasher   -> util.Hash64
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> zap.NewNop()
//   - Shards <= 0  -> auto, a power of two never exceeding MaxWeight
//
// MaxWeight is required and split across shards: every shard receives
// MaxWeight/n, and the first MaxWeight%n shards carry one extra unit so no
// capacity is lost to rounding.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.MaxWeight == 0 {
		panic("MaxWeight must be > 0")
	}
	if opt.Weigher == nil {
		opt.Weigher = UnitWeigher[K, V]
	}
	if opt.Hasher == nil {
		opt.Hasher = util.Hash64[K] // fast non-crypto hash for sharding
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}

	// number of shards -> power of two
	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
		// An automatic count never exceeds the budget: a zero-capacity
		// shard would reject every entry routed to it.
		for uint64(sh) > opt.MaxWeight {
			sh /= 2
		}
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	c := &cache[K, V]{
		shards: make([]*shard[K, V], sh),
		hash:   opt.Hasher,
		opt:    opt,
	}
	per := opt.MaxWeight / uint64(sh)
	rem := opt.MaxWeight % uint64(sh)
	for i := range c.shards {
		capW := per
		if uint64(i) < rem {
			capW++
		}
		// Shards share the cache's option block (defaults applied above).
		c.shards[i] = newShard(capW, &c.opt)
	}

	c.opt.Logger.Debug("cache initialized",
		zap.Int("shards", sh),
		zap.Uint64("max_weight", opt.MaxWeight),
	)

	// return pointer-to-impl as the interface (avoids unexported-return lint)
	return c
}

// ---- Cache[K,V] implementation ----

// Get returns the value for k and a presence flag.
// On hit, the entry's recency bit is set for the clock sweep.
func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Get(k)
}

// Peek returns the value for k without updating recency or statistics.
func (c *cache[K, V]) Peek(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Peek(k)
}

// Set inserts or replaces k→v and reports whether the entry is resident
// afterwards. False means the entry outweighed its shard's capacity and
// the cache was left unchanged.
func (c *cache[K, V]) Set(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Set(k, v, c.opt.Weigher(k, v))
}

// Add inserts k→v only if k is not resident.
// Returns false if the key already exists or the entry does not fit.
func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Add(k, v, c.opt.Weigher(k, v))
}

// Remove deletes k if present and returns the removed value.
func (c *cache[K, V]) Remove(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Remove(k)
}

// GetOrCompute returns the value for k, running compute on miss.
// Concurrent callers for the same missing key share a single computation.
func (c *cache[K, V]) GetOrCompute(ctx context.Context, k K, compute func(context.Context) (V, error)) (V, error) {
	if c.closed.Load() {
		var zero V
		return zero, ErrClosed
	}
	return c.getShard(k).GetOrCompute(ctx, k, compute)
}

// GetOrLoad returns the value for k, loading it via Options.Loader on miss
// with the same coalescing as GetOrCompute.
// If no Loader is configured, returns ErrNoLoader.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}
	return c.GetOrCompute(ctx, k, func(ctx context.Context) (V, error) {
		return c.opt.Loader(ctx, k)
	})
}

// Len returns the total number of resident entries across all shards.
func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Weight returns the total resident weight across all shards.
func (c *cache[K, V]) Weight() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.Weight()
	}
	return total
}

// Capacity returns the configured MaxWeight.
func (c *cache[K, V]) Capacity() uint64 {
	return c.opt.MaxWeight
}

// Stats returns a snapshot of the cache counters. Shards are read one at a
// time, so the snapshot is not a cross-shard atomic cut.
func (c *cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		s.snapshot(&st)
	}
	return st
}

// Close marks the cache as closed. Lookups start missing, inserts are
// dropped, and computing operations return ErrClosed. Close is idempotent
// and always returns nil; entries already being computed settle normally.
func (c *cache[K, V]) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.opt.Logger.Debug("cache closed")
	}
	return nil
}

// ---- helpers ----

// getShard picks a shard by hashing the key. len(c.shards) is a power of
// two, so the index reduces to a mask.
func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}
