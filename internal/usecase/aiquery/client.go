package aiquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/aivis/internal/domain"
)

// DefaultTimeout bounds a single model query.
const DefaultTimeout = 25 * time.Second

// Client routes a query to the querier registered for a model name and enforces
// the per-call deadline.
type Client struct {
	queriers map[domain.ModelName]domain.Querier
	order    []domain.ModelName
	timeout  time.Duration
}

// New creates an empty client. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{queriers: make(map[domain.ModelName]domain.Querier), timeout: timeout}
}

// Register adds a model. Registering the same name twice replaces the querier
// but keeps its original position.
func (c *Client) Register(name domain.ModelName, q domain.Querier) *Client {
	if _, ok := c.queriers[name]; !ok {
		c.order = append(c.order, name)
	}
	c.queriers[name] = q
	return c
}

// Models returns the registered model names in registration order.
func (c *Client) Models() []domain.ModelName {
	out := make([]domain.ModelName, len(c.order))
	copy(out, c.order)
	return out
}

// Timeout returns the per-call deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Query asks model about phrase. A call that outlives the deadline is cancelled and
// reported as domain.ErrQueryTimeout.
func (c *Client) Query(
	ctx context.Context, model domain.ModelName, phrase, domainContext string,
) (domain.QueryOutput, error) {
	q, ok := c.queriers[model]
	if !ok {
		return domain.QueryOutput{}, fmt.Errorf("%w: %s", domain.ErrUnknownModel, model)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := q.Query(callCtx, domain.QueryInput{Phrase: phrase, DomainContext: domainContext})
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.QueryOutput{}, fmt.Errorf("%s after %s: %w", model, c.timeout, domain.ErrQueryTimeout)
		}
		return domain.QueryOutput{}, fmt.Errorf("query %s: %w", model, err)
	}
	return out, nil
}

// HealthCheck probes every registered querier that supports it.
func (c *Client) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, name := range c.order {
		hc, ok := c.queriers[name].(domain.HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
