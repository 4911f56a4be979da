// Package cache provides a fast, generic, sharded in-memory cache bounded
// by total entry weight, with approximate-LRU (clock / second chance)
// eviction and single-flight computation of missing values.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex. The default shard count is chosen by a heuristic
//     (≈ 2*GOMAXPROCS) and is always a power of two, so a key's shard is
//     one hash and one mask away. Operations never touch more than one
//     shard, and never hold more than one lock.
//
//   - Storage: each shard keeps a map[K]int for lookups and a slot arena
//     forming the eviction ring. Entries never move inside the ring;
//     eviction tombstones a slot and a later insert recycles it. A hit
//     only sets the slot's atomic recency bit under the read lock, which
//     keeps the hot path contention-free.
//
//   - Eviction: a clock sweep walks the ring with a hand cursor. Slots
//     whose recency bit is set get a second chance (bit cleared, hand
//     moves on); the first cold slot at or after the hand is displaced.
//     The result approximates LRU per shard without a linked list.
//
//   - Weights: capacity is a weight budget (Options.MaxWeight) split
//     evenly across shards, with per-entry weight computed once at insert
//     by Options.Weigher. With the default UnitWeigher the budget is a
//     plain entry count. An entry heavier than its shard's slice of the
//     budget is rejected outright: Set returns false and nothing changes.
//
//   - GetOrCompute: concurrent callers for the same missing key coalesce
//     onto one computation. The computing call runs with no lock held;
//     waiters sit on a channel and honor their own context cancellation.
//     A Set or Add racing with the computation settles the waiters with
//     the inserted value, so every caller in the episode agrees on the
//     result. A panicking computation settles its waiters with
//     ErrComputeAborted and then re-panics.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict signals. By default
//     NoopMetrics is used; plug the Prometheus adapter from metrics/prom
//     to export them, with occupancy gauges polled at scrape time.
//
//   - Callbacks: Options.OnInsert(k, v) fires for every admitted value and
//     Options.OnEvict(k, v, reason) for every departure (reason is one of
//     EvictCapacity, EvictRemoved, EvictReplaced). Both run after the
//     shard lock is released and may call back into the cache.
//
// Basic usage
//
//	// Bound the cache by entry count (default unit weights).
//	c := cache.New[string, []byte](cache.Options[string, []byte]{MaxWeight: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// Bounding by payload size
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxWeight: 64 << 20, // 64 MiB of cached bytes
//	    Weigher:   cache.BytesWeigher[string],
//	})
//
// Coalesced computation
//
//	c := cache.New[string, string](cache.Options[string, string]{MaxWeight: 1024})
//	v, err := c.GetOrCompute(ctx, "key", func(ctx context.Context) (string, error) {
//	    // e.g. fetch from DB; runs once no matter how many callers race
//	    return "v:key", nil
//	})
//
// With a configured Loader
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    MaxWeight: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(context.Background(), "key")
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "myapp", "cache", nil) // implements cache.Metrics
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxWeight: 10_000,
//	    Metrics:   m,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Typical operation cost
// is O(1) expected time: one map access and a constant amount of ring
// work. A sweep performs O(1) amortized work per displaced entry; each
// pass over a slot either evicts it or spends its second chance.
//
// See options.go for all available Options fields.
package cache
