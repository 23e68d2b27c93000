package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

const defaultMaxTokens = 1024

// Config holds the chat provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Provider  string
	MaxTokens int
	Pricing   domain.Pricing
	Logger    *zap.Logger
}

// Chat talks to an OpenAI-compatible chat completions API.
// It answers visibility queries and doubles as the scoring judge.
type Chat struct {
	client    *openai.Client
	model     string
	provider  string
	maxTokens int
	pricing   domain.Pricing
	logger    *zap.Logger
}

// NewChat creates a chat client.
func NewChat(cfg *Config) *Chat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chat{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		provider:  provider,
		maxTokens: maxTokens,
		pricing:   cfg.Pricing,
		logger:    logger,
	}
}

// Query implements domain.Querier.
func (c *Chat) Query(ctx context.Context, in domain.QueryInput) (domain.QueryOutput, error) {
	var msgs []openai.ChatCompletionMessage
	if sys := in.SystemPrompt(); sys != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sys})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: in.Phrase})

	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: c.maxTokens,
	})
}

// Judge asks the model for a JSON object grading a response.
func (c *Chat) Judge(ctx context.Context, system, prompt string) (domain.QueryOutput, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
}

func (c *Chat) complete(ctx context.Context, req openai.ChatCompletionRequest) (domain.QueryOutput, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(c.provider, c.model, errorType(ctx, err)).Inc()
		if ctx.Err() != nil {
			return domain.QueryOutput{}, fmt.Errorf("%s chat: %w", c.provider, ctx.Err())
		}
		return domain.QueryOutput{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.QueryRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return domain.QueryOutput{}, fmt.Errorf("empty chat response: %w", domain.ErrQueryProviderError)
	}

	metrics.QueryRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.QueryRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	metrics.QueryTokensTotal.WithLabelValues(c.provider, c.model, "input").Add(float64(resp.Usage.PromptTokens))
	metrics.QueryTokensTotal.WithLabelValues(c.provider, c.model, "output").Add(float64(resp.Usage.CompletionTokens))

	return domain.QueryOutput{
		Response:     resp.Choices[0].Message.Content,
		Cost:         c.pricing.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Chat) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func errorType(ctx context.Context, err error) string {
	var apiErr *openai.APIError
	switch {
	case ctx.Err() != nil:
		return "timeout"
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429:
		return "rate_limited"
	default:
		return "api_error"
	}
}

// parseAPIError extracts a human-readable error from the API response.
// Everything is wrapped with domain.ErrQueryProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrQueryProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return fmt.Errorf("chat API error 429: %s: %w", apiErr.Message, errors.Join(domain.ErrRateLimited, wrap))
		}
		return fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("chat request failed: %v: %w", err, wrap)
}

// extractDetail reads the "detail" field some OpenAI-compatible gateways use for errors.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
