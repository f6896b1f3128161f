package prefetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesDeliveredCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conveyr",
		Name:      "batches_delivered_total",
		Help:      "Number of batches delivered to callers by prefetch runs.",
	})

	batchesInFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conveyr",
		Name:      "batches_in_flight",
		Help:      "Number of batches currently materialized and awaiting sequencing.",
	})

	replayDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conveyr",
		Name:      "replay_duration_ms",
		Help:      "Time (in ms) spent replaying the action log for one batch.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 1000, 5000}, // milliseconds
	})
)
