package orchestration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/catalog"
	"github.com/kailas-cloud/aivis/internal/domain/event"
	"github.com/kailas-cloud/aivis/internal/domain/query"
	"github.com/kailas-cloud/aivis/internal/domain/result"
	"github.com/kailas-cloud/aivis/internal/domain/stats"
	logpkg "github.com/kailas-cloud/aivis/internal/logger"
	"github.com/kailas-cloud/aivis/internal/metrics"
	"github.com/kailas-cloud/aivis/internal/usecase/dedup"
	"github.com/kailas-cloud/aivis/internal/usecase/scoring"
)

// Defaults for the scheduler.
const (
	DefaultBatchDelay     = 500 * time.Millisecond
	DefaultPersistTimeout = 10 * time.Second
)

// Error codes carried on error events.
const (
	CodeInvalidRequest = "invalid_request"
	CodeTooManyTasks   = "too_many_tasks"
	CodeDomainNotFound = "domain_not_found"
	CodeInternal       = "internal_error"
	CodeQueryTimeout   = "query_timeout"
	CodeQueryFailed    = "query_failed"
)

// RunRequest is one caller submission for a domain.
type RunRequest struct {
	DomainID  int64
	VersionID *int64
	Items     []query.Item
}

// Service drives orchestration runs: validate, then batch after batch of concurrent
// model queries, each scored and persisted, with events streamed to a sink.
type Service struct {
	repo           Repository
	querier        Querier
	scorer         Scorer
	maxTasks       int
	batchDelay     time.Duration
	persistTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *zap.Logger
}

// New creates a Service. repo can be nil, in which case nothing is persisted
// and a run needs no domain record.
func New(repo Repository, querier Querier, scorer Scorer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:           repo,
		querier:        querier,
		scorer:         scorer,
		maxTasks:       query.MaxTasks,
		batchDelay:     DefaultBatchDelay,
		persistTimeout: DefaultPersistTimeout,
		sleep:          sleepCtx,
		logger:         logger,
	}
}

// WithBatchDelay sets the pause between batches. Zero disables it.
func (s *Service) WithBatchDelay(d time.Duration) *Service {
	s.batchDelay = d
	return s
}

// WithMaxTasks overrides the per-run task cap.
func (s *Service) WithMaxTasks(n int) *Service {
	if n > 0 {
		s.maxTasks = n
	}
	return s
}

// WithPersistTimeout bounds each persistence call.
func (s *Service) WithPersistTimeout(d time.Duration) *Service {
	if d > 0 {
		s.persistTimeout = d
	}
	return s
}

// Models returns the models every phrase is sent to.
func (s *Service) Models() []domain.ModelName { return s.querier.Models() }

// Validate checks a request before any model is called.
func (s *Service) Validate(req RunRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: items must be a non-empty array", domain.ErrInvalidRequest)
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Keyword) == "" || len(it.Phrases) == 0 {
			return fmt.Errorf("%w: items[%d] needs a keyword and at least one phrase", domain.ErrInvalidRequest, i)
		}
		for j, p := range it.Phrases {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("%w: items[%d].phrases[%d] is blank", domain.ErrInvalidRequest, i, j)
			}
		}
	}

	models := len(s.querier.Models())
	if models == 0 {
		return fmt.Errorf("%w: no models configured", domain.ErrInvalidRequest)
	}
	n := query.CountTasks(req.Items, models)
	if n > s.maxTasks {
		return fmt.Errorf("%w: %d phrases x %d models = %d tasks, limit is %d",
			domain.ErrTooManyTasks, n/models, models, n, s.maxTasks)
	}
	return nil
}

// run is the state of one orchestration run. It is never shared across runs.
type run struct {
	id      string
	domain  domain.DomainContext
	scope   catalog.Scope
	total   int
	tracker *dedup.Tracker
	sink    event.Sink
	logger  *zap.Logger

	mu         sync.Mutex
	results    []result.Result
	settled    int
	failed     int
	duplicates int
}

// attempt is one task's pass through a batch.
type attempt struct {
	query.Task
	settled bool
}

// settle counts a finished task. A completed result gets the run progress at the
// moment it finished and joins the cumulative list. It reports false, counting
// nothing, if the attempt has already settled.
func (r *run) settle(a *attempt, res *result.Result, failed, duplicate bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.settled {
		return false
	}
	a.settled = true
	r.settled++
	switch {
	case failed:
		r.failed++
	case duplicate:
		r.duplicates++
	}
	if res != nil {
		res.ProgressPercent = math.Round(float64(r.settled)/float64(r.total)*1000) / 10
		r.results = append(r.results, *res)
	}
	return true
}

func (r *run) snapshot() []result.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]result.Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *run) emit(e event.Event) {
	if err := r.sink.Emit(e); err != nil {
		r.logger.Debug("Event not delivered", zap.String("event", string(e.Type)), zap.Error(err))
	}
}

// Run executes one orchestration run and streams its events to sink. Every path
// ends with exactly one terminal event: complete on success, a fatal error otherwise
// (a canceled context ends the stream without one, since nobody is listening).
func (s *Service) Run(ctx context.Context, req RunRequest, sink event.Sink) (event.Summary, error) {
	start := time.Now()
	r := &run{
		id:      uuid.NewString(),
		tracker: dedup.New(),
		sink:    event.Serialize(sink),
		scope:   catalog.Scope{DomainID: req.DomainID, VersionID: req.VersionID},
	}
	r.logger = logpkg.FromContextOr(ctx, s.logger).With(
		zap.String("run_id", r.id),
		zap.Int64("domain_id", req.DomainID),
	)

	if err := s.Validate(req); err != nil {
		code := CodeInvalidRequest
		if errors.Is(err, domain.ErrTooManyTasks) {
			code = CodeTooManyTasks
		}
		r.emit(event.NewError(event.Failure{Message: err.Error(), Code: code, Fatal: true}))
		metrics.RunsTotal.WithLabelValues("invalid").Inc()
		return event.Summary{}, err
	}

	dc, err := s.domainContext(ctx, req.DomainID)
	if err != nil {
		code := CodeInternal
		if errors.Is(err, domain.ErrDomainNotFound) {
			code = CodeDomainNotFound
		}
		r.logger.Error("Run aborted", zap.Error(err))
		r.emit(event.NewError(event.Failure{Message: err.Error(), Code: code, Fatal: true}))
		metrics.RunsTotal.WithLabelValues("fatal").Inc()
		return event.Summary{}, err
	}
	r.domain = dc

	tasks := query.Expand(query.Flatten(req.Items, req.DomainID, req.VersionID), s.querier.Models())
	r.total = len(tasks)
	size := BatchSizeFor(r.total)
	batches := Partition(tasks, size)

	r.logger.Info("Run started",
		zap.Int("tasks", r.total),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", size),
	)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return s.canceled(r, err)
		}

		r.emit(event.NewProgress(event.Progress{
			Message:      fmt.Sprintf("Processing batch %d of %d (%d queries)", i+1, len(batches), len(batch)),
			Batch:        i + 1,
			TotalBatches: len(batches),
			Percent:      math.Round(float64(i*size)/float64(r.total)*1000) / 10,
		}))

		batchStart := time.Now()
		s.runBatch(ctx, r, batch)
		metrics.BatchDuration.Observe(time.Since(batchStart).Seconds())

		r.emit(event.NewStats(stats.Compute(r.snapshot())))

		if i < len(batches)-1 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				return s.canceled(r, err)
			}
		}
	}

	results := r.snapshot()
	summary := event.Summary{
		RunID:           r.id,
		DomainID:        req.DomainID,
		TotalTasks:      r.total,
		Completed:       len(results),
		Failed:          r.failed,
		Duplicates:      r.duplicates,
		Batches:         len(batches),
		DurationSeconds: time.Since(start).Seconds(),
		Stats:           stats.Compute(results),
	}
	r.emit(event.NewComplete(summary))
	metrics.RunsTotal.WithLabelValues("complete").Inc()

	r.logger.Info("Run completed",
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (s *Service) canceled(r *run, err error) (event.Summary, error) {
	r.logger.Info("Run canceled", zap.Int("settled", r.settled), zap.Error(err))
	metrics.RunsTotal.WithLabelValues("canceled").Inc()
	return event.Summary{}, fmt.Errorf("run %s: %w", r.id, err)
}

func (s *Service) domainContext(ctx context.Context, domainID int64) (domain.DomainContext, error) {
	if s.repo == nil {
		return domain.DomainContext{ID: domainID}, nil
	}
	dc, err := s.repo.GetDomainContext(ctx, domainID)
	if err != nil {
		return domain.DomainContext{}, fmt.Errorf("load domain %d: %w", domainID, err)
	}
	return dc, nil
}

// runBatch starts every task at once and returns when all have settled.
func (s *Service) runBatch(ctx context.Context, r *run, batch []query.Task) {
	var g errgroup.Group
	for _, t := range batch {
		g.Go(func() error {
			a := &attempt{Task: t}
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("Task panicked", zap.Any("panic", p), zap.String("phrase", t.Phrase))
					s.fail(r, a, fmt.Errorf("panic: %v", p))
				}
			}()
			s.runTask(ctx, r, a)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) runTask(ctx context.Context, r *run, a *attempt) {
	t := a.Task
	if !r.tracker.Claim(t.Identity()) {
		r.logger.Warn("Skipping duplicate task",
			zap.String("phrase", t.Phrase),
			zap.String("model", string(t.Model)),
			zap.String("keyword", t.Keyword),
		)
		metrics.TasksTotal.WithLabelValues(string(t.Model), "duplicate").Inc()
		r.settle(a, nil, false, true)
		return
	}

	start := time.Now()
	out, err := s.querier.Query(ctx, t.Model, t.Phrase, r.domain.Context)
	if err != nil {
		if ctx.Err() != nil {
			r.settle(a, nil, true, false)
			return
		}
		s.fail(r, a, err)
		return
	}
	latency := time.Since(start).Seconds()

	scores, src := s.scorer.Score(ctx, scoring.Input{
		Phrase:   t.Phrase,
		Response: out.Response,
		Model:    t.Model,
		Domain:   r.domain,
	})

	res := result.Result{
		Task:           t,
		Response:       out.Response,
		LatencySeconds: math.Round(latency*100) / 100,
		Cost:           out.Cost,
		Scores:         scores,
		ScoreSource:    src,
	}
	s.persist(ctx, r, &res)
	metrics.TasksTotal.WithLabelValues(string(t.Model), "ok").Inc()

	r.settle(a, &res, false, false)
	r.emit(event.NewResult(res))
}

// fail reports a task that produced no result. An attempt that has already
// settled is only logged.
func (s *Service) fail(r *run, a *attempt, err error) {
	t := a.Task
	taskErr := &domain.TaskError{Phrase: t.Phrase, Model: t.Model, Keyword: t.Keyword, Err: err}
	if !r.settle(a, nil, true, false) {
		r.logger.Error("Task failed after settling", zap.Error(taskErr))
		return
	}

	code := CodeQueryFailed
	if errors.Is(err, domain.ErrQueryTimeout) {
		code = CodeQueryTimeout
	}
	r.logger.Warn("Task failed", zap.Error(taskErr))
	metrics.TasksTotal.WithLabelValues(string(t.Model), "error").Inc()

	r.emit(event.NewError(event.Failure{
		Message: fmt.Sprintf("Failed to query %s for %q: %v", t.Model, t.Phrase, err),
		Code:    code,
		Phrase:  t.Phrase,
		Model:   string(t.Model),
		Keyword: t.Keyword,
	}))
}

// persist stores res and records the outcome on it. Storage problems never fail the
// task. Writes are detached from the caller's cancellation so finished work is kept
// after a disconnect.
func (s *Service) persist(ctx context.Context, r *run, res *result.Result) {
	defer func() {
		metrics.PersistenceTotal.WithLabelValues(string(res.Persistence.Status)).Inc()
	}()

	if s.repo == nil {
		res.Persistence = result.Skipped("no store configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	kw, err := s.repo.FindKeyword(ctx, res.Keyword, r.scope)
	if err != nil {
		res.Persistence = s.outcome(r, res, "keyword not found", err)
		return
	}
	ph, err := s.repo.FindOrCreatePhrase(ctx, res.Phrase, kw.ID)
	if err != nil {
		res.Persistence = s.outcome(r, res, "phrase not found", err)
		return
	}
	id, err := s.repo.SaveResult(ctx, ph.ID, *res)
	if err != nil {
		res.Persistence = s.outcome(r, res, "", err)
		return
	}

	res.PersistedPhraseID = &ph.ID
	res.PersistedResultID = &id
	res.Persistence = result.Persisted()
}

func (s *Service) outcome(r *run, res *result.Result, missing string, err error) result.Persistence {
	if missing != "" && errors.Is(err, domain.ErrNotFound) {
		r.logger.Debug("Result not persisted", zap.String("keyword", res.Keyword), zap.String("reason", missing))
		return result.Skipped(missing)
	}
	r.logger.Warn("Failed to persist result",
		zap.String("phrase", res.Phrase),
		zap.String("model", string(res.Model)),
		zap.Error(err),
	)
	return result.Failed(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
