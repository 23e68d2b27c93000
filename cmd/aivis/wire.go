package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/config"
	dbRedis "github.com/kailas-cloud/aivis/internal/db/redis"
	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
	budgetrepo "github.com/kailas-cloud/aivis/internal/repository/budget"
	"github.com/kailas-cloud/aivis/internal/repository/postgres"
	"github.com/kailas-cloud/aivis/internal/repository/sqlite"
	"github.com/kailas-cloud/aivis/internal/transport/anthropic"
	"github.com/kailas-cloud/aivis/internal/transport/gemini"
	openaiChat "github.com/kailas-cloud/aivis/internal/transport/openai"
	"github.com/kailas-cloud/aivis/internal/transport/perplexity"
	"github.com/kailas-cloud/aivis/internal/usecase/aiquery"
	healthuc "github.com/kailas-cloud/aivis/internal/usecase/health"
	"github.com/kailas-cloud/aivis/internal/usecase/orchestration"
	"github.com/kailas-cloud/aivis/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/aivis/internal/usecase/usage"
)

// store is the persistence adapter selected by database.driver.
type store struct {
	repo    orchestration.Repository // nil when driver is none
	pinger  healthuc.Pinger
	migrate func(ctx context.Context) error
	close   func()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := postgres.New(pool)
		return &store{
			repo:    repo,
			pinger:  repo,
			migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, pool, logger) },
			close:   pool.Close,
		}, nil
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &store{
			repo:    repo,
			pinger:  repo,
			migrate: repo.Migrate,
			close:   func() { _ = repo.Close() },
		}, nil
	default:
		return &store{
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
}

// app is the composition root shared by serve and run.
type app struct {
	store        *store
	redis        *dbRedis.Store
	client       *aiquery.Client
	orchestrator *orchestration.Service
	usage        *usageuc.Service
	health       *healthuc.Service
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.store.close()
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterQueryMetrics()
	metrics.RegisterRunMetrics()

	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a := &app{store: st}

	if cfg.Database.MigrateOnStart {
		if err := st.migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var budgetStore aiquery.BudgetStore
	if cfg.Redis.Enabled() {
		rs, err := dbRedis.NewStore(dbRedis.Config{
			URL:      cfg.Redis.URL,
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.redis = rs
		if err := rs.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		budgetStore = budgetrepo.New(rs,
			time.Duration(cfg.Budget.DailyTTLHours)*time.Hour,
			time.Duration(cfg.Budget.MonthlyTTLDays)*24*time.Hour,
		)
		logger.Info("Connected to redis")
	}

	action := aiquery.BudgetActionWarn
	if cfg.Budget.Action == "reject" {
		action = aiquery.BudgetActionReject
	}

	a.client = aiquery.New(time.Duration(cfg.Orchestration.QueryTimeoutSec) * time.Second)
	budgets := make([]usageuc.ModelBudget, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		name := domain.ModelName(mc.Name)
		tracker := aiquery.NewBudgetTracker(name, mc.DailyTokenLimit, mc.MonthlyTokenLimit, action, logger)
		if budgetStore != nil {
			tracker.WithStore(ctx, budgetStore)
		}
		budgets = append(budgets, usageuc.ModelBudget{Model: name, Budget: tracker})

		a.client.Register(name, buildQuerier(mc, tracker, logger))
		logger.Info("Model registered",
			zap.String("name", mc.Name),
			zap.String("provider", mc.Provider),
			zap.String("model", mc.Model),
			zap.Float64("rps", mc.RPS),
		)
	}

	var judge scoring.Judge
	if cfg.Scoring.APIKey != "" {
		judge = openaiChat.NewChat(&openaiChat.Config{
			APIKey:   cfg.Scoring.APIKey,
			BaseURL:  cfg.Scoring.BaseURL,
			Model:    cfg.Scoring.Model,
			Provider: "openai-judge",
			Pricing:  cfg.Scoring.Pricing,
			Logger:   logger,
		})
	} else {
		logger.Warn("No scoring api_key configured, every response is scored heuristically")
	}
	scorer := scoring.New(judge, logger).WithTimeout(time.Duration(cfg.Scoring.TimeoutSec) * time.Second)

	a.orchestrator = orchestration.New(st.repo, a.client, scorer, logger).
		WithMaxTasks(cfg.Orchestration.MaxTasks).
		WithBatchDelay(time.Duration(cfg.Orchestration.BatchDelayMS) * time.Millisecond).
		WithPersistTimeout(time.Duration(cfg.Orchestration.PersistTimeoutSec) * time.Second)

	a.usage = usageuc.New(budgets...)

	var redisPinger healthuc.Pinger
	if a.redis != nil {
		redisPinger = a.redis
	}
	a.health = healthuc.New(st.pinger, redisPinger, a.client)

	return a, nil
}

// buildQuerier assembles the decorator chain: provider -> RateLimited -> Instrumented.
func buildQuerier(mc config.ModelConfig, budget aiquery.BudgetChecker, logger *zap.Logger) domain.Querier {
	var base domain.Querier
	switch mc.Provider {
	case config.ProviderAnthropic:
		base = anthropic.New(anthropic.Config{
			APIKey:    mc.APIKey,
			BaseURL:   mc.BaseURL,
			Model:     mc.Model,
			MaxTokens: mc.MaxTokens,
			Pricing:   mc.Pricing,
		})
	case config.ProviderGemini:
		base = gemini.New(gemini.Config{
			APIKey:    mc.APIKey,
			BaseURL:   mc.BaseURL,
			Model:     mc.Model,
			MaxTokens: mc.MaxTokens,
			Pricing:   mc.Pricing,
		})
	case config.ProviderPerplexity:
		base = perplexity.NewClient(mc.APIKey,
			perplexity.WithBaseURL(mc.BaseURL),
			perplexity.WithModel(mc.Model),
			perplexity.WithPricing(mc.Pricing),
		)
	default:
		base = openaiChat.NewChat(&openaiChat.Config{
			APIKey:    mc.APIKey,
			BaseURL:   mc.BaseURL,
			Model:     mc.Model,
			Provider:  mc.Provider,
			MaxTokens: mc.MaxTokens,
			Pricing:   mc.Pricing,
			Logger:    logger,
		})
	}

	name := domain.ModelName(mc.Name)
	limited := aiquery.NewRateLimitedQuerier(base, name, mc.RPS, mc.Burst)
	return aiquery.NewInstrumentedQuerier(limited, name, budget, logger)
}
