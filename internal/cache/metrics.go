package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the cache's Prometheus collectors.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Calls         *prometheus.CounterVec
	Invalidations prometheus.Counter
	Evictions     prometheus.Counter
	Entries       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Queries answered from a fulfilled entry.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Queries that needed a fetch or joined one in flight.",
		}),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "network_calls_total",
			Help:      "Remote calls issued, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entries marked stale by a tag invalidation.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed after their keep-alive window.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Calls, m.Invalidations, m.Evictions, m.Entries)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
