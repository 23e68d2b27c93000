package metrics

import "github.com/prometheus/client_golang/prometheus"

// Orchestration Prometheus metrics.
var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "runs_total",
			Help:      "Orchestration runs by outcome",
		},
		[]string{"outcome"}, // "complete" / "invalid" / "fatal" / "canceled" / "rejected"
	)

	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aivis",
			Name:      "admission_active_runs",
			Help:      "Runs currently holding an admission slot",
		},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "tasks_total",
			Help:      "Query tasks by model and outcome",
		},
		[]string{"model", "outcome"}, // "ok" / "error" / "duplicate"
	)

	ScoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "scores_total",
			Help:      "Scored responses by source",
		},
		[]string{"source"}, // "ai" / "fallback"
	)

	PersistenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "persistence_total",
			Help:      "Result persistence outcomes",
		},
		[]string{"status"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aivis",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one batch, from progress to stats",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 60, 120},
		},
	)
)

var runMetricsRegistered bool

// RegisterRunMetrics registers orchestration metrics. Must be called once from main.
func RegisterRunMetrics() {
	if runMetricsRegistered {
		return
	}
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(ActiveRuns)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(ScoresTotal)
	prometheus.MustRegister(PersistenceTotal)
	prometheus.MustRegister(BatchDuration)
	runMetricsRegistered = true
}
