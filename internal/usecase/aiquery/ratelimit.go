package aiquery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

// RateLimitedQuerier spaces out calls to one model. Waiting honors the caller's deadline,
// so a saturated limiter surfaces as a timeout rather than an unbounded queue.
type RateLimitedQuerier struct {
	inner   domain.Querier
	model   domain.ModelName
	limiter *rate.Limiter
}

// NewRateLimitedQuerier allows rps calls per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimitedQuerier(inner domain.Querier, model domain.ModelName, rps float64, burst int) domain.Querier {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedQuerier{
		inner:   inner,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Query waits for a token, then delegates.
func (q *RateLimitedQuerier) Query(ctx context.Context, in domain.QueryInput) (domain.QueryOutput, error) {
	start := time.Now()
	if err := q.limiter.Wait(ctx); err != nil {
		return domain.QueryOutput{}, fmt.Errorf("%s rate limiter: %w", q.model, err)
	}
	metrics.QueryRateLimitWaitSeconds.WithLabelValues(string(q.model)).Observe(time.Since(start).Seconds())
	return q.inner.Query(ctx, in) //nolint:wrapcheck // decorator is transparent
}

// HealthCheck forwards without consuming a token.
func (q *RateLimitedQuerier) HealthCheck(ctx context.Context) error {
	if hc, ok := q.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // decorator is transparent
	}
	return nil
}
