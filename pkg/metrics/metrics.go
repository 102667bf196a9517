package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent metrics
	AgentRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backfill_agent_running",
			Help: "Whether the backfill agent is running (1 = running, 0 = stopped)",
		},
	)

	BackfillPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backfill_passes_total",
			Help: "Total number of backfill passes by result",
		},
		[]string{"result"},
	)

	BackfillPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backfill_pass_duration_seconds",
			Help:    "Time taken by a single backfill pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AgentReconfiguresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backfill_agent_reconfigures_total",
			Help: "Total number of reconfigurations delivered to the backfill agent",
		},
		[]string{"result"},
	)

	// Priority metrics
	PriorityDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backfill_priority_decisions_total",
			Help: "Total number of initial priority decisions by decision",
		},
		[]string{"decision"},
	)

	// Predictor metrics
	PredictorCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backfill_predictor_call_duration_seconds",
			Help:    "Predictor call latency in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	PredictorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backfill_predictor_errors_total",
			Help: "Total number of failed predictor calls by failure kind",
		},
		[]string{"kind"},
	)

	PredictorReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backfill_predictor_reloads_total",
			Help: "Total number of predictor module reloads caused by file changes",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(AgentRunning)
	prometheus.MustRegister(BackfillPassesTotal)
	prometheus.MustRegister(BackfillPassDuration)
	prometheus.MustRegister(AgentReconfiguresTotal)
	prometheus.MustRegister(PriorityDecisionsTotal)
	prometheus.MustRegister(PredictorCallDuration)
	prometheus.MustRegister(PredictorErrorsTotal)
	prometheus.MustRegister(PredictorReloadsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
