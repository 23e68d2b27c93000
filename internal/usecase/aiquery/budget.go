package aiquery

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/usage"
)

// BudgetAction defines behavior when a model's token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the query.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the query with domain.ErrQueryQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists usage counters. IncrBy may be called repeatedly for the same key.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

const (
	counterTokens   = "tokens"
	counterRequests = "requests"
	counterCost     = "cost_micros"
)

type counters struct {
	tokens     int64
	requests   int64
	costMicros int64
}

func (c *counters) add(o counters) {
	c.tokens += o.tokens
	c.requests += o.requests
	c.costMicros += o.costMicros
}

func (c counters) metrics() usage.Metrics {
	return usage.NewMetrics(c.requests, c.tokens, c.costMicros)
}

// BudgetTracker keeps per-model usage for the current day and month.
// Check reads memory only; Record updates memory, then writes behind to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	daily          counters
	monthly        counters
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	model          domain.ModelName
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	logger         *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	model domain.ModelName, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	now := time.Now().UTC()
	return &BudgetTracker{
		dailyLimit:     dailyLimit,
		monthlyLimit:   monthlyLimit,
		action:         action,
		model:          model,
		lastDayReset:   truncateToDay(now),
		lastMonthReset: truncateToMonth(now),
		logger:         logger,
	}
}

// WithStore attaches a persistence store and loads the current period counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.load(ctx)
	return b
}

func (b *BudgetTracker) load(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	b.daily = b.loadCounters(ctx, "daily", now.Format("2006-01-02"))
	b.monthly = b.loadCounters(ctx, "monthly", now.Format("2006-01"))

	b.logger.Info("Query budget loaded from store",
		zap.String("model", string(b.model)),
		zap.Int64("daily_tokens", b.daily.tokens),
		zap.Int64("monthly_tokens", b.monthly.tokens),
	)
}

func (b *BudgetTracker) loadCounters(ctx context.Context, period, stamp string) counters {
	var c counters
	for name, dst := range map[string]*int64{
		counterTokens:   &c.tokens,
		counterRequests: &c.requests,
		counterCost:     &c.costMicros,
	} {
		key := b.key(period, name, stamp)
		val, err := b.store.Get(ctx, key)
		if err != nil {
			b.logger.Warn("Failed to load budget counter", zap.String("key", key), zap.Error(err))
			continue
		}
		*dst = val
	}
	return c
}

func (b *BudgetTracker) key(period, counter, stamp string) string {
	return fmt.Sprintf("%susage:%s:%s:%s:%s", domain.KeyPrefix, b.model, period, counter, stamp)
}

// Check verifies the budget allows another query.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.daily.tokens >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthly.tokens >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return fmt.Errorf("%s: %w", b.model, domain.ErrQueryQuotaExceeded)
	}

	b.logger.Warn("Query token budget exceeded",
		zap.String("model", string(b.model)),
		zap.Int64("daily_tokens", b.daily.tokens),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_tokens", b.monthly.tokens),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers one completed query.
func (b *BudgetTracker) Record(out domain.QueryOutput) {
	delta := counters{
		tokens:     int64(out.TotalTokens()),
		requests:   1,
		costMicros: int64(math.Round(out.Cost * 1e6)),
	}

	b.mu.Lock()
	b.resetIfNeeded()
	b.daily.add(delta)
	b.monthly.add(delta)
	store := b.store
	now := time.Now().UTC()
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	day, month := now.Format("2006-01-02"), now.Format("2006-01")
	writes := []struct {
		key string
		val int64
	}{
		{b.key("daily", counterTokens, day), delta.tokens},
		{b.key("daily", counterRequests, day), delta.requests},
		{b.key("daily", counterCost, day), delta.costMicros},
		{b.key("monthly", counterTokens, month), delta.tokens},
		{b.key("monthly", counterRequests, month), delta.requests},
		{b.key("monthly", counterCost, month), delta.costMicros},
	}
	for _, w := range writes {
		if w.val == 0 {
			continue
		}
		if err := store.IncrBy(ctx, w.key, w.val); err != nil {
			b.logger.Warn("Failed to persist budget counter", zap.String("key", w.key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.daily.tokens)
}

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthly.tokens)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// DailyLimit returns the daily token cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.dailyLimit }

// MonthlyLimit returns the monthly token cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthlyLimit }

// Daily returns today's usage.
func (b *BudgetTracker) Daily() usage.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.daily.metrics()
}

// Monthly returns this month's usage.
func (b *BudgetTracker) Monthly() usage.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthly.metrics()
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *BudgetTracker) resetIfNeeded() {
	now := time.Now().UTC()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.daily = counters{}
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthly = counters{}
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
