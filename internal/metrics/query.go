package metrics

import "github.com/prometheus/client_golang/prometheus"

// Model query Prometheus metrics.
var (
	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "query_requests_total",
			Help:      "Total number of model query requests",
		},
		[]string{"provider", "model", "status"},
	)

	QueryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aivis",
			Name:      "query_request_duration_seconds",
			Help:      "Model query duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 25, 60},
		},
		[]string{"provider", "model"},
	)

	QueryTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "query_tokens_total",
			Help:      "Total tokens consumed by model queries",
		},
		[]string{"provider", "model", "type"}, // "input" / "output"
	)

	QueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "query_errors_total",
			Help:      "Total model query errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	QueryCostDollarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aivis",
			Name:      "query_cost_dollars_total",
			Help:      "Estimated spend on model queries in USD",
		},
		[]string{"model"},
	)

	QueryBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aivis",
			Name:      "query_budget_remaining_tokens",
			Help:      "Remaining token budget",
		},
		[]string{"model", "period"},
	)

	QueryRateLimitWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aivis",
			Name:      "query_rate_limit_wait_seconds",
			Help:      "Time spent waiting for a model rate limiter",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"model"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers Prometheus model query metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryRequestsTotal)
	prometheus.MustRegister(QueryRequestDuration)
	prometheus.MustRegister(QueryTokensTotal)
	prometheus.MustRegister(QueryErrorsTotal)
	prometheus.MustRegister(QueryCostDollarsTotal)
	prometheus.MustRegister(QueryBudgetTokensRemaining)
	prometheus.MustRegister(QueryRateLimitWaitSeconds)
	queryMetricsRegistered = true
}
