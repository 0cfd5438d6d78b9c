package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// hitsTotal counts cache hits by layer.
	// Labels: layer (L1, L2)
	hitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidrag",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by layer",
		},
		[]string{"layer"},
	)

	// missesTotal counts lookups that fell through to the store.
	missesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bidrag",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
	)

	// invalidationsTotal counts document invalidations.
	invalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bidrag",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Total number of document invalidations",
		},
	)
)
