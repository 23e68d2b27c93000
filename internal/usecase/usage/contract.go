package usage

import (
	"github.com/kailas-cloud/aivis/internal/domain"
	domusage "github.com/kailas-cloud/aivis/internal/domain/usage"
)

// BudgetReader provides read-only access to one model's token budget.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	RemainingDaily() int64
	RemainingMonthly() int64
	Daily() domusage.Metrics
	Monthly() domusage.Metrics
}

// ModelBudget names the model a BudgetReader tracks.
type ModelBudget struct {
	Model  domain.ModelName
	Budget BudgetReader
}
