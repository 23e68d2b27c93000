package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/aivis/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	budgets []ModelBudget
	now     func() time.Time
}

// New creates a Service reporting on budgets in the given order.
func New(budgets ...ModelBudget) *Service {
	return &Service{budgets: budgets, now: time.Now}
}

// GetReport builds one report per tracked model for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) []domusage.Report {
	start, end := bounds(s.now().UTC(), period)

	reports := make([]domusage.Report, 0, len(s.budgets))
	for _, mb := range s.budgets {
		var (
			limit, remaining int64
			m                domusage.Metrics
		)
		switch period {
		case domusage.PeriodMonth:
			limit, remaining, m = mb.Budget.MonthlyLimit(), mb.Budget.RemainingMonthly(), mb.Budget.Monthly()
		default:
			limit, remaining, m = mb.Budget.DailyLimit(), mb.Budget.RemainingDaily(), mb.Budget.Daily()
		}
		b := domusage.NewBudget(limit, remaining, end.UnixMilli())
		reports = append(reports, domusage.NewReport(period, start.UnixMilli(), end.UnixMilli(), mb.Model, m, b))
	}
	return reports
}

func bounds(now time.Time, period domusage.Period) (time.Time, time.Time) {
	if period == domusage.PeriodMonth {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
