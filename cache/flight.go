package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrComputeAborted reports that a compute callback terminated without
// producing a value (panic or runtime.Goexit). Callers that were waiting
// on that computation receive this error; the panicking goroutine itself
// observes the original panic.
var ErrComputeAborted = errors.New("cache: compute aborted")

// flight marks a key whose value is currently being computed. It is the
// single-flight rendezvous: whoever settles the flight publishes val/err
// and then closes done, exactly once; waiters block on done and read the
// outcome afterwards. The publish happens before close, so reading after
// <-done needs no lock.
type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// GetOrCompute returns the value for k, running compute on miss.
// Concurrent callers for the same missing key coalesce onto one
// computation and all receive its outcome. compute runs with no shard lock
// held, so it may be slow and may touch the cache itself.
func (s *shard[K, V]) GetOrCompute(ctx context.Context, k K, compute func(context.Context) (V, error)) (V, error) {
	// Fast path: plain read-locked probe.
	if v, ok := s.Get(k); ok {
		return v, nil
	}

	s.mu.Lock()
	if idx, ok := s.table[k]; ok {
		// The entry landed between the probe and the write lock.
		sl := &s.ring[idx]
		sl.mark()
		v := sl.value
		s.mu.Unlock()
		s.hits.Add(1)
		s.opt.Metrics.Hit()
		return v, nil
	}
	if f, ok := s.inflight[k]; ok {
		// Someone else is computing this key: wait for their outcome.
		// Cancellation abandons only this waiter; the computation keeps
		// running for the rest.
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	f := &flight[V]{done: make(chan struct{})}
	s.inflight[k] = f
	s.mu.Unlock()

	return s.lead(ctx, k, f, compute)
}

// lead runs compute as the single flight for k and settles f with its
// outcome. The deferred settle covers panics and runtime.Goexit: an
// aborted computation must never strand its waiters.
func (s *shard[K, V]) lead(ctx context.Context, k K, f *flight[V], compute func(context.Context) (V, error)) (V, error) {
	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		err := ErrComputeAborted
		if r != nil {
			err = fmt.Errorf("%w: %v", ErrComputeAborted, r)
		}
		s.fail(k, f, err)
		if r != nil {
			panic(r)
		}
	}()

	v, err := compute(ctx)
	returned = true
	if err != nil {
		return s.fail(k, f, err)
	}
	return s.fulfil(k, v, f)
}

// fail settles f with err and reports what the leader should return. If a
// direct insert superseded the flight, the inserted value already settled
// it and wins; the compute error is discarded along with the computation.
func (s *shard[K, V]) fail(k K, f *flight[V], err error) (V, error) {
	s.mu.Lock()
	if s.inflight[k] != f {
		v, serr := f.val, f.err
		s.mu.Unlock()
		return v, serr
	}
	delete(s.inflight, k)
	f.err = err
	close(f.done)
	s.mu.Unlock()
	var zero V
	return zero, err
}

// fulfil settles f with the computed value and admits it into the shard.
// The weigher runs before the lock, like every other insert. Admission may
// be refused for weight; callers still receive the value, it just is not
// cached. If a direct insert superseded the flight, the inserted value
// wins and the computed one is discarded, so every caller in the episode
// observes the same result.
func (s *shard[K, V]) fulfil(k K, v V, f *flight[V]) (V, error) {
	w := s.opt.Weigher(k, v)
	var evs []evicted[K, V]
	s.mu.Lock()
	if s.inflight[k] != f {
		v2, err := f.val, f.err
		s.mu.Unlock()
		return v2, err
	}
	delete(s.inflight, k)
	f.val = v
	close(f.done)
	admitted := false
	if w <= s.capacity {
		s.sweepLocked(w, noProtect, &evs)
		s.admitLocked(k, v, w)
		admitted = true
	}
	s.mu.Unlock()
	s.notify(evs)
	if admitted {
		s.noteInsert(k, v)
	}
	return v, nil
}

// resolveLocked completes an in-flight computation for k with the value an
// insert just admitted. Waiters wake with v; the stale computation finds
// its flight deregistered and adopts this outcome in place of its own.
func (s *shard[K, V]) resolveLocked(k K, v V) {
	f, ok := s.inflight[k]
	if !ok {
		return
	}
	delete(s.inflight, k)
	f.val = v
	close(f.done)
}
