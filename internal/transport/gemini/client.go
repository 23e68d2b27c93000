package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel     = "gemini-2.0-flash"
	defaultMaxTokens = 1024
	provider         = "gemini"
)

// Config holds the Gemini settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Pricing   domain.Pricing
	HTTP      *http.Client
}

// Client calls the generateContent REST endpoint.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	pricing   domain.Pricing
	http      *http.Client
}

// New creates a Gemini client.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		pricing:   cfg.Pricing,
		http:      cfg.HTTP,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Query implements domain.Querier.
func (c *Client) Query(ctx context.Context, in domain.QueryInput) (domain.QueryOutput, error) {
	req := generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: in.Phrase}}}},
		GenerationConfig: generationConfig{MaxOutputTokens: c.maxTokens},
	}
	if sys := in.SystemPrompt(); sys != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: sys}}}
	}

	start := time.Now()
	resp, err := c.generate(ctx, req)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(provider, c.model, errorType(ctx, err)).Inc()
		if ctx.Err() != nil {
			return domain.QueryOutput{}, fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return domain.QueryOutput{}, fmt.Errorf("%w: %w", domain.ErrQueryProviderError, err)
	}

	text := resp.text()
	if text == "" {
		metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(provider, c.model, "empty_response").Inc()
		return domain.QueryOutput{}, fmt.Errorf("gemini: empty response: %w", domain.ErrQueryProviderError)
	}

	inTok, outTok := resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount
	metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.QueryRequestDuration.WithLabelValues(provider, c.model).Observe(time.Since(start).Seconds())
	metrics.QueryTokensTotal.WithLabelValues(provider, c.model, "input").Add(float64(inTok))
	metrics.QueryTokensTotal.WithLabelValues(provider, c.model, "output").Add(float64(outTok))

	return domain.QueryOutput{
		Response:     text,
		Cost:         c.pricing.Cost(inTok, outTok),
		InputTokens:  inTok,
		OutputTokens: outTok,
	}, nil
}

// text joins the parts of the first candidate.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// HealthCheck fetches the model metadata, which costs nothing.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models/%s?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return eris.Wrap(err, "gemini: create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "gemini: get model")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("gemini: get model: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, req generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// The URL carries the key; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "gemini: unmarshal response")
	}
	return &out, nil
}

func statusError(code int, body []byte) error {
	msg := string(body)
	var parsed apiError
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Status + ": " + parsed.Error.Message
	}
	err := eris.Errorf("gemini: status %d: %s", code, msg)
	if code == http.StatusTooManyRequests {
		return errors.Join(domain.ErrRateLimited, err)
	}
	return err
}

func errorType(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	default:
		return "api_error"
	}
}
