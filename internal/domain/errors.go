package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDomainNotFound signals that the target domain record does not exist.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrInvalidRequest signals malformed run input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTooManyTasks signals that phrases x models exceeds the per-run cap.
	ErrTooManyTasks = errors.New("too many tasks")
	// ErrTooManyRuns signals that a domain already has the maximum number of active runs.
	ErrTooManyRuns = errors.New("too many concurrent runs")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQueryQuotaExceeded signals an exhausted model token budget.
	ErrQueryQuotaExceeded = errors.New("query quota exceeded")
	// ErrQueryProviderError signals an AI provider failure.
	ErrQueryProviderError = errors.New("query provider error")
	// ErrQueryTimeout signals that a model did not answer before its deadline.
	ErrQueryTimeout = errors.New("query timeout")
	// ErrUnknownModel signals a model name outside the configured set.
	ErrUnknownModel = errors.New("unknown model")
	// ErrScoreParse signals a judge response that could not be read as scores.
	ErrScoreParse = errors.New("score parse")
)

// TaskError attributes a per-task failure to the phrase, model and keyword that produced it.
type TaskError struct {
	Phrase  string
	Model   ModelName
	Keyword string
	Err     error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("query %q with %s (keyword %q): %v", e.Phrase, e.Model, e.Keyword, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// RunLimitError reports a rejected admission with the counts the caller needs to retry.
type RunLimitError struct {
	DomainID int64
	Active   int
	Limit    int
}

func (e *RunLimitError) Error() string {
	return fmt.Sprintf("domain %d already has %d of %d runs active", e.DomainID, e.Active, e.Limit)
}

func (e *RunLimitError) Unwrap() error { return ErrTooManyRuns }
