package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable; runs cannot persist or load domains.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as keys in Report.Checks.
const (
	ComponentDatabase = "database"
	ComponentRedis    = "redis"
	ComponentModels   = "models"
)

const defaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db      Pinger
	redis   Pinger
	models  ModelChecker
	timeout time.Duration
}

// New creates a Service. Any dependency can be nil and is then not reported.
func New(db, redis Pinger, models ModelChecker) *Service {
	return &Service{db: db, redis: redis, models: models, timeout: defaultCheckTimeout}
}

// Check runs every configured check, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.db != nil {
		checks[ComponentDatabase] = s.run(ctx, s.db.Ping)
	}
	if s.redis != nil {
		checks[ComponentRedis] = s.run(ctx, s.redis.Ping)
	}
	if s.models != nil {
		checks[ComponentModels] = s.run(ctx, s.models.HealthCheck)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
