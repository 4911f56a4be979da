package cache

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// String keys include strconv/concat costs and often allocate, which is fine
// for an end-to-end benchmark.
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[string, string](Options[string, string]{
		MaxWeight: 100_000,
	})
	b.Cleanup(func() { _ = c.Close() })

	// Preload half the budget to get a realistic hit-rate.
	for i := 0; i < 50_000; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Set(k, "v")
	}

	// Report per-op allocations for a rough idea where costs go.
	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1 // hot keyspace (power of two for fast &-mask)

	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Set(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// benchmarkMixInt is the same workload but with int keys.
// This removes strconv/alloc noise and better exposes the cache hot path.
func benchmarkMixInt(b *testing.B, readsPct int) {
	c := New[int, int](Options[int, int]{
		MaxWeight: 100_000,
	})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		c.Set(i, 1)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := i & keyMask
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Set(k, 1)
			}
			i++
		}
	})
}

func BenchmarkCache_IntKeys_90r10w(b *testing.B) { benchmarkMixInt(b, 90) }
func BenchmarkCache_IntKeys_50r50w(b *testing.B) { benchmarkMixInt(b, 50) }

// BenchmarkCache_GetHit measures the pure hit path: read lock, map probe,
// one atomic bit set.
func BenchmarkCache_GetHit(b *testing.B) {
	c := New[int, int](Options[int, int]{MaxWeight: 1 << 16})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 1<<16; i++ {
		c.Set(i, i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	keyMask := (1 << 16) - 1
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(i & keyMask)
			i++
		}
	})
}

// BenchmarkCache_GetOrComputeHit measures GetOrCompute on a warm key:
// the flight machinery must be invisible once the value is resident.
func BenchmarkCache_GetOrComputeHit(b *testing.B) {
	c := New[string, string](Options[string, string]{MaxWeight: 1024})
	b.Cleanup(func() { _ = c.Close() })

	compute := func(context.Context) (string, error) { return "v", nil }
	ctx := context.Background()
	if _, err := c.GetOrCompute(ctx, "hot", compute); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.GetOrCompute(ctx, "hot", compute); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkCache_WeightedChurn stresses the sweep: byte-weighted values
// against a budget sized to keep the clock hand moving.
func BenchmarkCache_WeightedChurn(b *testing.B) {
	c := New[int, []byte](Options[int, []byte]{
		MaxWeight: 1 << 20, // 1 MiB
		Weigher:   BytesWeigher[int],
	})
	b.Cleanup(func() { _ = c.Close() })

	val := make([]byte, 512)

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		for pb.Next() {
			k := r.Intn(1 << 14) // ~4x the resident set, constant pressure
			if r.Intn(100) < 70 {
				c.Get(k)
			} else {
				c.Set(k, val)
			}
		}
	})
}
