package usage

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/aivis/internal/domain"
	domusage "github.com/kailas-cloud/aivis/internal/domain/usage"
)

// --- Mock ---

type mockBudgetReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	remainingDaily   int64
	remainingMonthly int64
	daily            domusage.Metrics
	monthly          domusage.Metrics
}

func (m *mockBudgetReader) DailyLimit() int64         { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64       { return m.monthlyLimit }
func (m *mockBudgetReader) RemainingDaily() int64     { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64   { return m.remainingMonthly }
func (m *mockBudgetReader) Daily() domusage.Metrics   { return m.daily }
func (m *mockBudgetReader) Monthly() domusage.Metrics { return m.monthly }

func fixedNow(svc *Service) {
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 13, 30, 0, 0, time.UTC) }
}

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		dailyLimit:       10000,
		remainingDaily:   7000,
		monthlyLimit:     100000,
		remainingMonthly: 50000,
		daily:            domusage.NewMetrics(12, 3000, 45000),
		monthly:          domusage.NewMetrics(200, 50000, 900000),
	}
	svc := New(ModelBudget{Model: domain.ModelChatGPT, Budget: br})
	fixedNow(svc)

	reports := svc.GetReport(context.Background(), domusage.PeriodDay)
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]

	if r.Period() != domusage.PeriodDay || r.Model() != domain.ModelChatGPT {
		t.Errorf("unexpected period/model: %q %q", r.Period(), r.Model())
	}
	dayStart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != dayStart.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if r.Budget().TokensLimit() != 10000 || r.Budget().TokensRemaining() != 7000 {
		t.Errorf("unexpected budget: %+v", r.Budget())
	}
	if r.Budget().ResetsAt() != r.PeriodEnd() {
		t.Error("budget resets at the end of the period")
	}
	if r.Metrics().Tokens() != 3000 || r.Metrics().Requests() != 12 {
		t.Errorf("unexpected metrics: %+v", r.Metrics())
	}
	if r.Metrics().CostUSD() != 0.045 {
		t.Errorf("expected cost 0.045, got %v", r.Metrics().CostUSD())
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		monthlyLimit:     100000,
		remainingMonthly: 0,
		monthly:          domusage.NewMetrics(200, 100000, 0),
	}
	svc := New(ModelBudget{Model: domain.ModelClaude, Budget: br})
	fixedNow(svc)

	r := svc.GetReport(context.Background(), domusage.PeriodMonth)[0]

	if r.PeriodStart() != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected period start %d", r.PeriodStart())
	}
	if r.PeriodEnd() != time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if !r.Budget().IsExhausted() {
		t.Error("expected exhausted budget")
	}
}

func TestGetReport_UnlimitedAndOrder(t *testing.T) {
	unlimited := &mockBudgetReader{remainingDaily: -1, remainingMonthly: -1}
	svc := New(
		ModelBudget{Model: domain.ModelGemini, Budget: unlimited},
		ModelBudget{Model: domain.ModelChatGPT, Budget: unlimited},
	)

	reports := svc.GetReport(context.Background(), domusage.PeriodDay)
	if len(reports) != 2 || reports[0].Model() != domain.ModelGemini {
		t.Fatalf("reports must follow configuration order")
	}
	if reports[0].Budget().IsExhausted() {
		t.Error("unlimited budget is never exhausted")
	}
}

func TestGetReport_NoBudgets(t *testing.T) {
	if got := New().GetReport(context.Background(), domusage.PeriodDay); len(got) != 0 {
		t.Errorf("expected no reports, got %d", len(got))
	}
}
