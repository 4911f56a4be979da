// Package prom exports cache metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clockcache/clockcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	reg         prometheus.Registerer
	ns, sub     string
	constLabels prometheus.Labels

	hits   prometheus.Counter
	misses prometheus.Counter
	evicts *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		reg:         reg,
		ns:          ns,
		sub:         sub,
		constLabels: constLabels,
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts)
	return a
}

// ObserveOccupancy registers scrape-time gauges for the cache's occupancy,
// backed by the given accessors. Gauges read on scrape instead of on every
// mutation: every shard reports its own slice of the totals, so only the
// cache itself can answer for the whole.
//
// Pass the cache's method values:
//
//	a := prom.New(nil, "myapp", "cache", nil)
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxWeight: 1 << 20,
//	    Metrics:   a,
//	})
//	a.ObserveOccupancy(c.Len, c.Weight)
func (a *Adapter) ObserveOccupancy(entries func() int, weight func() uint64) {
	a.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   a.ns,
			Subsystem:   a.sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: a.constLabels,
		}, func() float64 { return float64(entries()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   a.ns,
			Subsystem:   a.sub,
			Name:        "size_weight",
			Help:        "Total resident weight",
			ConstLabels: a.constLabels,
		}, func() float64 { return float64(weight()) }),
	)
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// reason maps EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictRemoved:
		return "removed"
	case cache.EvictReplaced:
		return "replaced"
	default:
		return "capacity"
	}
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
