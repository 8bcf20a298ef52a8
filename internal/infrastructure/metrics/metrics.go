package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished generation jobs by terminal state.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ealain",
			Subsystem: "refill",
			Name:      "jobs_total",
			Help:      "Generation jobs by terminal state",
		},
		[]string{"partition", "state"},
	)

	// JobDuration tracks submit-to-download time.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ealain",
			Subsystem: "refill",
			Name:      "job_duration_seconds",
			Help:      "Generation job duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"partition"},
	)

	ImagesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ealain",
			Subsystem: "store",
			Name:      "images_saved_total",
			Help:      "Images written to the cache",
		},
		[]string{"partition"},
	)

	ImagesCensoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ealain",
			Subsystem: "refill",
			Name:      "images_censored_total",
			Help:      "Generated images dropped by the content filter",
		},
		[]string{"partition"},
	)

	ImagesPrunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ealain",
			Subsystem: "store",
			Name:      "images_pruned_total",
			Help:      "Images removed by pruning",
		},
		[]string{"partition"},
	)

	PoolEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ealain",
			Subsystem: "store",
			Name:      "pool_entries",
			Help:      "Cached images per partition",
		},
		[]string{"partition"},
	)

	SwapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ealain",
			Subsystem: "rotation",
			Name:      "swaps_total",
			Help:      "Completed crossfades",
		},
	)

	// FailureScore mirrors the refill failure score; it stops growing once the engine stops.
	FailureScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ealain",
			Subsystem: "refill",
			Name:      "failure_score",
			Help:      "Current consecutive failure score",
		},
	)

	Stopped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ealain",
			Subsystem: "refill",
			Name:      "stopped",
			Help:      "1 once the failure threshold was exceeded",
		},
	)
)
