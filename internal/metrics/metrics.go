package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CascadesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sched_cascades_total",
			Help: "Total number of date cascades run",
		},
		[]string{"status"}, // status: applied, noop, failed
	)

	TasksRescheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sched_tasks_rescheduled_total",
			Help: "Total number of tasks whose planned dates were moved by a cascade",
		},
	)

	CycleRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sched_cycle_rejections_total",
			Help: "Total number of dependency edges rejected because they would close a cycle",
		},
	)

	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sched_cache_reads_total",
			Help: "Schedule read-path cache lookups",
		},
		[]string{"kind", "result"}, // kind: state, progress; result: hit, miss
	)

	CascadeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sched_cascade_duration_seconds",
			Help:    "Cascade computation and apply duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sched_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveCascade records the outcome and duration of one cascade run.
func ObserveCascade(status string, rescheduled int, duration time.Duration) {
	CascadesTotal.WithLabelValues(status).Inc()
	TasksRescheduled.Add(float64(rescheduled))
	CascadeDuration.Observe(duration.Seconds())
}

// ObserveCacheRead records a hit or miss on the read-path cache.
func ObserveCacheRead(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheReads.WithLabelValues(kind, result).Inc()
}
