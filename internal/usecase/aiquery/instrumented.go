package aiquery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(out domain.QueryOutput)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedQuerier wraps a Querier with budget enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded by each provider transport.
type InstrumentedQuerier struct {
	inner  domain.Querier
	model  domain.ModelName
	budget BudgetChecker
	logger *zap.Logger
}

// NewInstrumentedQuerier wraps a querier with budget and observability. budget can be nil.
func NewInstrumentedQuerier(
	inner domain.Querier, model domain.ModelName,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedQuerier {
	return &InstrumentedQuerier{inner: inner, model: model, budget: budget, logger: logger}
}

// Query checks budget, delegates and records usage.
func (q *InstrumentedQuerier) Query(ctx context.Context, in domain.QueryInput) (domain.QueryOutput, error) {
	if q.budget != nil {
		if err := q.budget.Check(ctx); err != nil {
			q.logger.Error("Query budget exceeded", zap.String("model", string(q.model)), zap.Error(err))
			return domain.QueryOutput{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	out, err := q.inner.Query(ctx, in)
	duration := time.Since(start)

	if err != nil {
		q.logger.Error("Model query failed",
			zap.String("model", string(q.model)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.QueryOutput{}, err
	}

	metrics.QueryCostDollarsTotal.WithLabelValues(string(q.model)).Add(out.Cost)
	if q.budget != nil {
		q.budget.Record(out)
		remaining := metrics.QueryBudgetTokensRemaining
		remaining.WithLabelValues(string(q.model), "daily").Set(float64(q.budget.RemainingDaily()))
		remaining.WithLabelValues(string(q.model), "monthly").Set(float64(q.budget.RemainingMonthly()))
	}

	q.logger.Debug("Model query completed",
		zap.String("model", string(q.model)),
		zap.Duration("duration", duration),
		zap.Int("input_tokens", out.InputTokens),
		zap.Int("output_tokens", out.OutputTokens),
		zap.Float64("cost_usd", out.Cost),
	)
	return out, nil
}

// HealthCheck forwards to the wrapped querier when it supports probing.
func (q *InstrumentedQuerier) HealthCheck(ctx context.Context) error {
	if hc, ok := q.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // decorator is transparent
	}
	return nil
}
