package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/domain"
)

// ErrorCode is the machine-readable code on every JSON error body.
type ErrorCode string

// Error codes returned before a stream is opened.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotFound         ErrorCode = "not_found"
	CodeDomainNotFound   ErrorCode = "domain_not_found"
	CodeTooManyRuns      ErrorCode = "too_many_runs"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeValidation       ErrorCode = "validation_failed"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeQuotaExceeded    ErrorCode = "quota_exceeded"
	CodeProviderError    ErrorCode = "provider_error"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// runLimitResponse is the 429 body for a rejected run.
type runLimitResponse struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	DomainID int64     `json:"domainId"`
	Active   int       `json:"active"`
	Limit    int       `json:"limit"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		runLimitHandler,
		sentinelHandler(domain.ErrDomainNotFound, http.StatusNotFound, CodeDomainNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidation),
		sentinelHandler(domain.ErrTooManyTasks, http.StatusBadRequest, CodeValidation),
		sentinelHandler(domain.ErrUnknownModel, http.StatusBadRequest, CodeValidation),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrQueryQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
		sentinelHandler(domain.ErrQueryProviderError, http.StatusBadGateway, CodeProviderError),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var rle *domain.RunLimitError
	if errors.As(err, &rle) {
		return rle.Error()
	}
	sentinels := []error{
		domain.ErrDomainNotFound,
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrTooManyTasks,
		domain.ErrTooManyRuns,
		domain.ErrUnknownModel,
		domain.ErrRateLimited,
		domain.ErrQueryQuotaExceeded,
		domain.ErrQueryProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// runLimitHandler answers a rejected admission with the counts and a Retry-After hint.
func runLimitHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrTooManyRuns) {
		return false
	}
	resp := runLimitResponse{Code: CodeTooManyRuns, Message: msg}
	var rle *domain.RunLimitError
	if errors.As(err, &rle) {
		resp.DomainID, resp.Active, resp.Limit = rle.DomainID, rle.Active, rle.Limit
	}
	w.Header().Set("Retry-After", "5")
	writeJSON(w, http.StatusTooManyRequests, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
