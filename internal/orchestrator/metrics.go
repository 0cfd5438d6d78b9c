package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts requests by mode and outcome.
	// Labels: mode, result (ok, partial, error, overloaded)
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidrag",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total number of ask requests",
		},
		[]string{"mode", "result"},
	)

	// requestDuration tracks end-to-end request latency per mode.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bidrag",
			Subsystem: "pipeline",
			Name:      "request_duration_seconds",
			Help:      "End-to-end ask latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
		},
		[]string{"mode"},
	)

	// inflightGauge tracks admitted in-flight requests.
	inflightGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bidrag",
			Subsystem: "pipeline",
			Name:      "inflight_requests",
			Help:      "Currently admitted in-flight requests",
		},
	)
)
