package chi

import (
	"encoding/json"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	domusage "github.com/kailas-cloud/aivis/internal/domain/usage"
	healthuc "github.com/kailas-cloud/aivis/internal/usecase/health"
)

// DefaultKeepalive is the interval between SSE keepalive comments.
const DefaultKeepalive = 15 * time.Second

// Server serves the run API.
type Server struct {
	runs          RunService
	admission     Admission
	usage         UsageReporter
	health        HealthChecker
	keepalive     time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. usage and health may be nil, in which
// case their routes answer with empty data.
func NewServer(
	runs RunService,
	admission Admission,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		runs:          runs,
		admission:     admission,
		usage:         usage,
		health:        health,
		keepalive:     DefaultKeepalive,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithKeepalive sets the SSE keepalive interval. Zero disables keepalives.
func (s *Server) WithKeepalive(d time.Duration) *Server {
	s.keepalive = d
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r gochi.Router) {
		r.Post("/domains/{domainID}/runs", s.StartRun)
		r.Get("/domains/{domainID}/slots", s.GetSlots)
		r.Get("/models", s.ListModels)
		r.Get("/usage", s.GetUsage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})
}

// SlotsResponse reports admission state for one domain.
type SlotsResponse struct {
	DomainID int64 `json:"domainId"`
	Active   int   `json:"active"`
	Limit    int   `json:"limit"`
}

// ModelsResponse lists the models every phrase is sent to.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// UsageResponse is the token usage of every tracked model over one period.
type UsageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt *time.Time   `json:"periodStartAt,omitempty"`
	PeriodEndAt   *time.Time   `json:"periodEndAt,omitempty"`
	Models        []ModelUsage `json:"models"`
}

// ModelUsage is one model's line in a UsageResponse.
type ModelUsage struct {
	Model    string       `json:"model"`
	Requests int64        `json:"requests"`
	Tokens   int64        `json:"tokens"`
	CostUSD  float64      `json:"costUsd"`
	Budget   BudgetStatus `json:"budget"`
}

// BudgetStatus is a token budget snapshot. A zero limit means unlimited.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokensLimit"`
	TokensRemaining int64      `json:"tokensRemaining"`
	IsExhausted     bool       `json:"isExhausted"`
	ResetsAt        *time.Time `json:"resetsAt,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ListModels handles GET /api/v1/models.
func (s *Server) ListModels(w http.ResponseWriter, _ *http.Request) {
	models := s.runs.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = string(m)
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Models: names})
}

// GetUsage handles GET /api/v1/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid period parameter")
		return
	}
	value := ""
	if raw != nil {
		value = *raw
	}
	period, ok := domusage.ParsePeriod(value)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "period must be day or month")
		return
	}

	resp := UsageResponse{Period: string(period), Models: []ModelUsage{}}
	if s.usage == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	for _, report := range s.usage.GetReport(r.Context(), period) {
		if resp.PeriodStartAt == nil && report.PeriodStart() > 0 {
			start := time.UnixMilli(report.PeriodStart()).UTC()
			end := time.UnixMilli(report.PeriodEnd()).UTC()
			resp.PeriodStartAt, resp.PeriodEndAt = &start, &end
		}

		m, b := report.Metrics(), report.Budget()
		line := ModelUsage{
			Model:    string(report.Model()),
			Requests: m.Requests(),
			Tokens:   m.Tokens(),
			CostUSD:  m.CostUSD(),
			Budget: BudgetStatus{
				TokensLimit:     b.TokensLimit(),
				TokensRemaining: b.TokensRemaining(),
				IsExhausted:     b.IsExhausted(),
			},
		}
		if b.ResetsAt() > 0 {
			resetsAt := time.UnixMilli(b.ResetsAt()).UTC()
			line.Budget.ResetsAt = &resetsAt
		}
		resp.Models = append(resp.Models, line)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: string(healthuc.Healthy), Checks: map[string]string{}})
		return
	}
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
