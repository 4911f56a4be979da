// Command bench runs a synthetic Zipf workload against the cache and exposes
// optional pprof/Prometheus endpoints. With -baseline the same key stream also
// drives a strict LRU of equal entry capacity so the hit rates can be compared.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clockcache/clockcache/cache"
	"github.com/clockcache/clockcache/metrics/prom"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// ---- Flags ----
	var (
		weight  = flag.Uint64("weight", 64<<20, "cache capacity (total weight)")
		shards  = flag.Int("shards", 0, "number of shards (0=auto)")
		valsize = flag.Int("valsize", 128, "value payload size; each entry weighs this much")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys     = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS    = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV    = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload  = flag.Int("preload", 0, "preload entries (0 = half the entry capacity)")
		baseline = flag.Bool("baseline", false, "also drive a strict LRU of equal entry capacity and report its hit rate")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()

	valsizeN := *valsize
	if valsizeN < 1 {
		valsizeN = 1
	}
	entryCap := int(*weight / uint64(valsizeN))
	if entryCap < 1 {
		entryCap = 1
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", zap.String("addr", *pprofAddr))
			logger.Error("pprof server exited", zap.Error(http.ListenAndServe(*pprofAddr, nil)))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := prom.New(nil, "clockcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("metrics: serving", zap.String("addr", *metricsAddr))
		logger.Error("metrics server exited", zap.Error(http.ListenAndServe(*metricsAddr, nil)))
	}()

	// ---- Build cache ----
	c := cache.New[string, string](cache.Options[string, string]{
		MaxWeight: *weight,
		Shards:    *shards,
		Weigher:   cache.StringWeigher[string],
		Metrics:   metrics,
		Logger:    logger,
	})
	defer func() { _ = c.Close() }()
	metrics.ObserveOccupancy(c.Len, c.Weight)

	// ---- Optional strict-LRU baseline with the same entry capacity ----
	var base *lru.Cache[string, string]
	if *baseline {
		b, err := lru.New[string, string](entryCap)
		if err != nil {
			logger.Fatal("baseline lru", zap.Error(err))
		}
		base = b
	}

	// All entries carry the same payload so every one weighs valsize.
	value := strings.Repeat("v", valsizeN)

	// ---- Preload half the entry capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = entryCap / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Set(k, value)
		if base != nil {
			base.Add(k, value)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysN := *keys
	if keysN < 1 {
		keysN = 1
	}
	keysMax := uint64(keysN - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, baseHits uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					k := keyByZipf()
					if _, ok := c.Get(k); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
					if base != nil {
						if _, ok := base.Get(k); ok {
							atomic.AddUint64(&baseHits, 1)
						}
					}
				} else {
					atomic.AddUint64(&writes, 1)
					k := keyByZipf()
					c.Set(k, value)
					if base != nil {
						base.Add(k, value)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)
	ops := readsN + writesN

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("weight=%d valsize=%d entries~%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		*weight, valsizeN, entryCap, *shards, workersN, keysN, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	if base != nil {
		baseHitsN := atomic.LoadUint64(&baseHits)
		baseRate := 0.0
		if readsN > 0 {
			baseRate = float64(baseHitsN) / float64(readsN) * 100
		}
		fmt.Printf("lru-baseline: hits=%d  hit-rate=%.2f%%  (entries=%d)\n", baseHitsN, baseRate, base.Len())
	}
	fmt.Printf("Len()=%d  Weight()=%d\n", c.Len(), c.Weight())
}
