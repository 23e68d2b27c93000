package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/domain/score"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

// DefaultTimeout bounds one judge call.
const DefaultTimeout = 60 * time.Second

const systemPrompt = `You evaluate how an AI assistant's answer represents a company's website.
Reply with a single JSON object and nothing else:
{"presence": 0 or 1, "relevance": 1-5, "accuracy": 1-5, "sentiment": 1-5, "overall": 1-5}
presence is 1 only if the answer mentions the company, its brand or its domain.`

// Input is everything the scorer needs about one answered task.
type Input struct {
	Phrase   string
	Response string
	Model    domain.ModelName
	Domain   domain.DomainContext
}

// Scorer grades responses with a judge model and falls back to the heuristic
// whenever the judge errors, times out or answers with something unreadable.
type Scorer struct {
	judge   Judge
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Scorer. judge can be nil, in which case every score is heuristic.
func New(judge Judge, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{judge: judge, timeout: DefaultTimeout, logger: logger}
}

// WithTimeout overrides the judge deadline.
func (s *Scorer) WithTimeout(d time.Duration) *Scorer {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Score never fails: the second return tells which path produced the set.
func (s *Scorer) Score(ctx context.Context, in Input) (score.Set, score.Source) {
	set, err := s.judgeScore(ctx, in)
	if err == nil {
		s.count(score.SourceAI)
		return set, score.SourceAI
	}

	lvl := zap.WarnLevel
	if errors.Is(err, context.Canceled) {
		lvl = zap.DebugLevel
	}
	s.logger.Log(lvl, "AI scoring failed, using heuristic",
		zap.String("model", string(in.Model)),
		zap.String("phrase", in.Phrase),
		zap.Error(err),
	)
	s.count(score.SourceFallback)
	return Fallback(in.Phrase, in.Response, in.Domain.Host()), score.SourceFallback
}

func (s *Scorer) judgeScore(ctx context.Context, in Input) (score.Set, error) {
	if s.judge == nil {
		return score.Set{}, errors.New("no judge configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.judge.Judge(ctx, systemPrompt, buildPrompt(in))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return score.Set{}, fmt.Errorf("judge after %s: %w", s.timeout, context.DeadlineExceeded)
		}
		return score.Set{}, fmt.Errorf("judge: %w", err)
	}

	set, err := Parse(out.Response)
	if err != nil {
		return score.Set{}, err
	}
	return set, nil
}

func (s *Scorer) count(src score.Source) {
	metrics.ScoresTotal.WithLabelValues(string(src)).Inc()
}

func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company website: %s\n", in.Domain.URL)
	if c := strings.TrimSpace(in.Domain.Context); c != "" {
		fmt.Fprintf(&b, "About the company: %s\n", c)
	}
	fmt.Fprintf(&b, "User question: %s\n", in.Phrase)
	fmt.Fprintf(&b, "Assistant (%s) answer:\n%s\n", in.Model, in.Response)
	return b.String()
}
