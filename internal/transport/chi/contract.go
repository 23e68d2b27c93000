package chi

import (
	"context"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/event"
	domusage "github.com/kailas-cloud/aivis/internal/domain/usage"
	healthuc "github.com/kailas-cloud/aivis/internal/usecase/health"
	"github.com/kailas-cloud/aivis/internal/usecase/orchestration"
)

// RunService executes orchestration runs.
type RunService interface {
	Run(ctx context.Context, req orchestration.RunRequest, sink event.Sink) (event.Summary, error)
	Models() []domain.ModelName
}

// Admission hands out per-domain run slots.
type Admission interface {
	TryAdmit(domainID int64) bool
	Release(domainID int64)
	Active(domainID int64) int
	Limit() int
}

// UsageReporter builds token usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) []domusage.Report
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
