package cache

import (
	"sync"

	"github.com/clockcache/clockcache/internal/util"
)

// shard is an independent partition of the cache: a key table, a clock
// eviction ring, a weight budget, and one lock. Keys never migrate between
// shards, so no operation ever holds more than one shard lock.
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu       sync.RWMutex
	table    map[K]int    // key -> ring index of its live slot
	ring     []slot[K, V] // slot arena; tombstones are recycled before the ring grows
	free     []int        // tombstoned indexes available for reuse
	hand     int          // clock cursor; advances only while sweeping
	live     int          // number of live slots
	weight   uint64       // total weight of live slots
	capacity uint64       // this shard's slice of Options.MaxWeight

	// inflight tracks keys whose value is being computed right now.
	// A key is present in table or in inflight, never in both.
	inflight map[K]*flight[V]

	opt *Options[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

// evicted is an eviction record carried out of the shard lock so that
// lifecycle callbacks never run under it.
type evicted[K comparable, V any] struct {
	key    K
	value  V
	reason EvictReason
}

func newShard[K comparable, V any](capacity uint64, opt *Options[K, V]) *shard[K, V] {
	return &shard[K, V]{
		table:    make(map[K]int),
		inflight: make(map[K]*flight[V]),
		capacity: capacity,
		opt:      opt,
	}
}

// Get returns the value for k and marks the entry recently used. A read
// lock suffices: a hit only flips the slot's atomic recency bit and never
// touches the ring order.
func (s *shard[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	idx, ok := s.table[k]
	if !ok {
		s.mu.RUnlock()
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	sl := &s.ring[idx]
	sl.mark()
	v := sl.value
	s.mu.RUnlock()
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return v, true
}

// Peek returns the value for k without marking it used and without
// touching the hit/miss counters. Useful for diagnostics that must not
// distort the eviction order.
func (s *shard[K, V]) Peek(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.table[k]; ok {
		return s.ring[idx].value, true
	}
	var zero V
	return zero, false
}

// Set inserts or replaces the entry for k and reports whether it is
// resident afterwards. An entry outweighing the shard's whole budget is
// rejected up front and the cache is left unchanged.
func (s *shard[K, V]) Set(k K, v V, w uint64) bool {
	if w > s.capacity {
		return false
	}
	var evs []evicted[K, V]
	s.mu.Lock()
	if idx, ok := s.table[k]; ok {
		sl := &s.ring[idx]
		s.collect(&evs, k, sl.value, EvictReplaced)
		s.opt.Metrics.Evict(EvictReplaced)
		s.weight = s.weight - sl.weight + w
		sl.value = v
		sl.weight = w
		sl.mark() // an overwrite counts as a use
		// Growing in place may overshoot the budget; sweep the others,
		// keeping the just-written entry pinned.
		s.sweepLocked(0, idx, &evs)
		s.mu.Unlock()
		s.notify(evs)
		s.noteInsert(k, v)
		return true
	}
	s.sweepLocked(w, noProtect, &evs)
	s.admitLocked(k, v, w)
	s.resolveLocked(k, v)
	s.mu.Unlock()
	s.notify(evs)
	s.noteInsert(k, v)
	return true
}

// Add inserts k→v only if k has no resident entry, and reports whether the
// entry was admitted. A key that is merely being computed (see
// GetOrCompute) does not count as resident; admitting it settles the
// computation with this value.
func (s *shard[K, V]) Add(k K, v V, w uint64) bool {
	if w > s.capacity {
		return false
	}
	var evs []evicted[K, V]
	s.mu.Lock()
	if _, ok := s.table[k]; ok {
		s.mu.Unlock()
		return false
	}
	s.sweepLocked(w, noProtect, &evs)
	s.admitLocked(k, v, w)
	s.resolveLocked(k, v)
	s.mu.Unlock()
	s.notify(evs)
	s.noteInsert(k, v)
	return true
}

// Remove deletes the entry for k and returns the removed value, if any.
// An in-flight computation for k is left untouched: its eventual value
// describes a later point in time than the removal.
func (s *shard[K, V]) Remove(k K) (V, bool) {
	var evs []evicted[K, V]
	s.mu.Lock()
	idx, ok := s.table[k]
	if !ok {
		s.mu.Unlock()
		var zero V
		return zero, false
	}
	v := s.ring[idx].value
	s.evictLocked(idx, EvictRemoved, &evs)
	s.mu.Unlock()
	s.notify(evs)
	return v, true
}

// Len returns the number of resident entries in this shard.
func (s *shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Weight returns the total weight of resident entries in this shard.
func (s *shard[K, V]) Weight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weight
}

// snapshot folds this shard's counters into st. Counter loads happen after
// the locked part, so the snapshot is consistent per shard but not a
// cross-shard atomic cut.
func (s *shard[K, V]) snapshot(st *Stats) {
	s.mu.RLock()
	st.Entries += s.live
	st.Weight += s.weight
	s.mu.RUnlock()
	st.Hits += s.hits.Load()
	st.Misses += s.misses.Load()
	st.Evictions += s.evicts.Load()
}

// -------------------- internals --------------------

// collect appends an eviction record when an OnEvict callback is
// configured; with no callback there is nothing to carry out of the lock.
func (s *shard[K, V]) collect(evs *[]evicted[K, V], k K, v V, reason EvictReason) {
	if s.opt.OnEvict == nil {
		return
	}
	*evs = append(*evs, evicted[K, V]{key: k, value: v, reason: reason})
}

// notify runs the OnEvict callback for every collected eviction.
// Must be called with the shard lock released.
func (s *shard[K, V]) notify(evs []evicted[K, V]) {
	if cb := s.opt.OnEvict; cb != nil {
		for _, e := range evs {
			cb(e.key, e.value, e.reason)
		}
	}
}

// noteInsert runs the OnInsert callback. Must be called with the shard
// lock released.
func (s *shard[K, V]) noteInsert(k K, v V) {
	if cb := s.opt.OnInsert; cb != nil {
		cb(k, v)
	}
}
