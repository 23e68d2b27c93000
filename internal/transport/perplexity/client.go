package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar"
	provider       = "perplexity"
)

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithPricing sets the price list used for cost estimates.
func WithPricing(p domain.Pricing) Option {
	return func(c *Client) { c.pricing = p }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client queries Perplexity's chat completions API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	pricing domain.Pricing
	http    *http.Client
}

// NewClient creates a Perplexity client. Deadlines come from the caller's context.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query implements domain.Querier.
func (c *Client) Query(ctx context.Context, in domain.QueryInput) (domain.QueryOutput, error) {
	req := chatRequest{Model: c.model}
	if sys := in.SystemPrompt(); sys != "" {
		req.Messages = append(req.Messages, message{Role: "system", Content: sys})
	}
	req.Messages = append(req.Messages, message{Role: "user", Content: in.Phrase})

	start := time.Now()
	resp, err := c.chat(ctx, req)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(provider, c.model, errorType(ctx, err)).Inc()
		if ctx.Err() != nil {
			return domain.QueryOutput{}, fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return domain.QueryOutput{}, fmt.Errorf("%w: %w", domain.ErrQueryProviderError, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(provider, c.model, "empty_response").Inc()
		return domain.QueryOutput{}, fmt.Errorf("perplexity: empty response: %w", domain.ErrQueryProviderError)
	}

	inTok, outTok := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.QueryRequestDuration.WithLabelValues(provider, c.model).Observe(time.Since(start).Seconds())
	metrics.QueryTokensTotal.WithLabelValues(provider, c.model, "input").Add(float64(inTok))
	metrics.QueryTokensTotal.WithLabelValues(provider, c.model, "output").Add(float64(outTok))

	return domain.QueryOutput{
		Response:     resp.Choices[0].Message.Content,
		Cost:         c.pricing.Cost(inTok, outTok),
		InputTokens:  inTok,
		OutputTokens: outTok,
	}, nil
}

// statusError carries a non-200 reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *Client) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}
	if resp.StatusCode != http.StatusOK {
		se := &statusError{code: resp.StatusCode, body: string(respBody)}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.Join(domain.ErrRateLimited, eris.Wrap(se, "perplexity"))
		}
		return nil, eris.Wrap(se, "perplexity")
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "perplexity: unmarshal response")
	}
	return &out, nil
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
