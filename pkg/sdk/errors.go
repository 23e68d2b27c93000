package aivis

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/aivis/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound       = domain.ErrNotFound
	ErrDomainNotFound = domain.ErrDomainNotFound
	ErrInvalidRequest = domain.ErrInvalidRequest
	ErrTooManyRuns    = domain.ErrTooManyRuns
	ErrRateLimited    = domain.ErrRateLimited
	ErrQuotaExceeded  = domain.ErrQueryQuotaExceeded
	ErrProviderError  = domain.ErrQueryProviderError
)

// codeSentinels maps API error codes onto the sentinels above.
var codeSentinels = map[string]error{
	"not_found":         ErrNotFound,
	"domain_not_found":  ErrDomainNotFound,
	"bad_request":       ErrInvalidRequest,
	"validation_failed": ErrInvalidRequest,
	"too_many_runs":     ErrTooManyRuns,
	"rate_limited":      ErrRateLimited,
	"quota_exceeded":    ErrQuotaExceeded,
	"provider_error":    ErrProviderError,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string

	// Set on too_many_runs rejections.
	Active     int
	Limit      int
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("aivis: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("aivis: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match the sentinel for the error code.
func (e *APIError) Unwrap() error { return codeSentinels[e.Code] }

// RunError is a fatal error event that ended a run stream.
type RunError struct {
	Failure Failure
}

func (e *RunError) Error() string {
	if e.Failure.Code == "" {
		return "aivis: run failed: " + e.Failure.Message
	}
	return fmt.Sprintf("aivis: run failed (%s): %s", e.Failure.Code, e.Failure.Message)
}

// Unwrap maps the stream error code onto a sentinel where one exists.
func (e *RunError) Unwrap() error {
	switch e.Failure.Code {
	case "domain_not_found":
		return ErrDomainNotFound
	case "invalid_request", "too_many_tasks":
		return ErrInvalidRequest
	}
	return nil
}
