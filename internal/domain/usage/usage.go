package usage

import "github.com/kailas-cloud/aivis/internal/domain"

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query-string value onto a Period, defaulting to day.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, true
	case PeriodMonth:
		return PeriodMonth, true
	default:
		return "", false
	}
}

// Metrics holds model usage for a time period.
type Metrics struct {
	requests         int64
	tokens           int64
	costMicrodollars int64
}

// NewMetrics creates a Metrics snapshot.
func NewMetrics(requests, tokens, costMicrodollars int64) Metrics {
	return Metrics{requests: requests, tokens: tokens, costMicrodollars: costMicrodollars}
}

// Requests returns the number of model calls.
func (m Metrics) Requests() int64 { return m.requests }

// Tokens returns input plus output tokens consumed.
func (m Metrics) Tokens() int64 { return m.tokens }

// CostUSD returns the estimated spend in dollars.
func (m Metrics) CostUSD() float64 { return float64(m.costMicrodollars) / 1e6 }

// Budget is a token budget snapshot. A zero limit means unlimited.
type Budget struct {
	tokensLimit     int64
	tokensRemaining int64
	resetsAt        int64 // unix millis
}

// NewBudget creates a Budget snapshot.
func NewBudget(limit, remaining, resetsAt int64) Budget {
	return Budget{tokensLimit: limit, tokensRemaining: remaining, resetsAt: resetsAt}
}

// TokensLimit returns the token cap.
func (b Budget) TokensLimit() int64 { return b.tokensLimit }

// TokensRemaining returns tokens left (-1 when unlimited).
func (b Budget) TokensRemaining() int64 { return b.tokensRemaining }

// IsExhausted reports whether a limited budget is spent.
func (b Budget) IsExhausted() bool { return b.tokensLimit > 0 && b.tokensRemaining <= 0 }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// Report is the usage of one model over one period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	model       domain.ModelName
	metrics     Metrics
	budget      Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, model domain.ModelName, m Metrics, b Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		model:       model,
		metrics:     m,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Model returns the model the report covers.
func (r *Report) Model() domain.ModelName { return r.model }

// Metrics returns the usage metrics.
func (r *Report) Metrics() Metrics { return r.metrics }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
