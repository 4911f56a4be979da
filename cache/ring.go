package cache

import "sync/atomic"

// slot is one position in a shard's eviction ring. It holds either a live
// entry or a tombstone left behind by eviction and removal. Slots never
// move: the ring only grows at the tail and tombstones are recycled in
// place, so evicting one entry never relocates another.
type slot[K comparable, V any] struct {
	key    K
	value  V
	weight uint64

	// visited is the clock recency bit: set on every hit and overwrite,
	// cleared only when the sweep hand passes. Atomic because hits flip
	// it under the shard's read lock, concurrently with other readers.
	visited uint32

	// live distinguishes entries from tombstones. Mutated only under the
	// shard's write lock.
	live bool
}

func (s *slot[K, V]) mark()        { atomic.StoreUint32(&s.visited, 1) }
func (s *slot[K, V]) unmark()      { atomic.StoreUint32(&s.visited, 0) }
func (s *slot[K, V]) marked() bool { return atomic.LoadUint32(&s.visited) == 1 }

// noProtect disables sweep protection (see sweepLocked).
const noProtect = -1

// admitLocked places a new live entry for k, reusing a tombstone when one
// is available and appending at the ring tail otherwise. The recency bit
// starts cleared: a fresh entry has to earn a hit before it survives a
// full sweep pass.
func (s *shard[K, V]) admitLocked(k K, v V, w uint64) {
	var idx int
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.ring[idx]
		sl.key = k
		sl.value = v
		sl.weight = w
		sl.live = true
	} else {
		idx = len(s.ring)
		s.ring = append(s.ring, slot[K, V]{key: k, value: v, weight: w, live: true})
	}
	s.table[k] = idx
	s.weight += w
	s.live++
}

// tombstoneLocked clears the slot at idx and queues it for reuse.
// Zeroing key and value releases their references so evicted entries do
// not pin memory through the arena.
func (s *shard[K, V]) tombstoneLocked(idx int) {
	sl := &s.ring[idx]
	var zk K
	var zv V
	sl.key = zk
	sl.value = zv
	sl.weight = 0
	sl.unmark()
	sl.live = false
	s.free = append(s.free, idx)
}

// evictLocked drops the live entry at idx, updates accounting, and records
// the eviction so the caller can run lifecycle callbacks after unlocking.
// Only capacity evictions feed the Evictions counter; removals and
// replacements are visible through Metrics with their own reason.
func (s *shard[K, V]) evictLocked(idx int, reason EvictReason, evs *[]evicted[K, V]) {
	sl := &s.ring[idx]
	k, v := sl.key, sl.value
	delete(s.table, k)
	s.weight -= sl.weight
	s.live--
	s.tombstoneLocked(idx)
	if reason == EvictCapacity {
		s.evicts.Add(1)
	}
	s.opt.Metrics.Evict(reason)
	s.collect(evs, k, v, reason)
}

// sweepLocked evicts entries until the shard can absorb `additional` more
// weight, or until no evictable entry remains. A slot index may be passed
// as protect to pin one entry for the duration of the sweep; Set uses this
// so that growing an entry in place cannot evict that same entry.
func (s *shard[K, V]) sweepLocked(additional uint64, protect int, evs *[]evicted[K, V]) {
	for s.weight+additional > s.capacity {
		evictable := s.live
		if protect != noProtect {
			evictable--
		}
		if evictable <= 0 {
			return
		}
		s.evictOneLocked(protect, evs)
	}
}

// evictOneLocked advances the hand until exactly one entry has been
// evicted. Marked slots get their second chance: the bit is cleared and
// the hand moves on. Tombstones and the protected index are stepped over.
// The first unmarked live slot at or after the hand is the victim, so ties
// between equally cold entries resolve in ring order.
func (s *shard[K, V]) evictOneLocked(protect int, evs *[]evicted[K, V]) {
	for {
		idx := s.hand
		s.hand++
		if s.hand == len(s.ring) {
			s.hand = 0
		}
		sl := &s.ring[idx]
		if !sl.live || idx == protect {
			continue
		}
		if sl.marked() {
			sl.unmark()
			continue
		}
		s.evictLocked(idx, EvictCapacity, evs)
		return
	}
}
