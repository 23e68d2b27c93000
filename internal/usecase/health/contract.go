package health

import "context"

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker checks that configured AI providers answer.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}
