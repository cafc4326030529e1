package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processing_runs_started_total",
		Help: "Total processing runs started.",
	})
	runsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processing_runs_completed_total",
		Help: "Total processing runs that finished in completed status.",
	})
	runsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processing_runs_failed_total",
		Help: "Total processing runs that finished in error status.",
	})
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_failures_total",
		Help: "Total pipeline stage failures by stage.",
	}, []string{"stage"})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "processing_run_duration_ms",
		Help:    "Processing run duration in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
	})
)

// IncRunStarted increments the started counter.
func IncRunStarted() {
	runsStarted.Inc()
}

// IncRunCompleted increments the completed counter.
func IncRunCompleted() {
	runsCompleted.Inc()
}

// IncRunFailed increments the failed counter.
func IncRunFailed() {
	runsFailed.Inc()
}

// IncStageFailure records a single stage failure.
func IncStageFailure(stage string) {
	stageFailures.WithLabelValues(stage).Inc()
}

// ObserveRunDurationMs records a run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
