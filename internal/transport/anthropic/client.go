package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/kailas-cloud/aivis/internal/domain"
	"github.com/kailas-cloud/aivis/internal/metrics"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
	provider         = "anthropic"
)

// Config holds the Anthropic settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Pricing   domain.Pricing
	// MaxRetries overrides the SDK retry count when non-nil.
	MaxRetries *int
}

// Client queries Claude through the Messages API.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int64
	pricing   domain.Pricing
}

// New creates a Claude client.
func New(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*cfg.MaxRetries))
	}

	c := &Client{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		pricing:   cfg.Pricing,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	return c
}

// Query implements domain.Querier.
func (c *Client) Query(ctx context.Context, in domain.QueryInput) (domain.QueryOutput, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(in.Phrase))},
	}
	if sys := in.SystemPrompt(); sys != "" {
		params.System = []sdk.TextBlockParam{{Text: sys}}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(provider, c.model, errorType(ctx, err)).Inc()
		return domain.QueryOutput{}, wrapError(ctx, err)
	}

	text := messageText(msg)
	if text == "" {
		metrics.QueryRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.QueryErrorsTotal.WithLabelValues(provider, c.model, "empty_response").Inc()
		return domain.QueryOutput{}, fmt.Errorf("anthropic: empty response: %w", domain.ErrQueryProviderError)
	}

	inTok, outTok := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
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

// HealthCheck retrieves the configured model's metadata.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, sdk.ModelGetParams{}); err != nil {
		return eris.Wrap(err, "anthropic: get model")
	}
	return nil
}

func messageText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func wrapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), eris.Wrap(err, "anthropic: create message"))
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		wrapped := eris.Wrapf(err, "anthropic: status %d", apiErr.StatusCode)
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", errors.Join(domain.ErrRateLimited, domain.ErrQueryProviderError), wrapped)
		}
		return fmt.Errorf("%w: %w", domain.ErrQueryProviderError, wrapped)
	}
	return fmt.Errorf("%w: %w", domain.ErrQueryProviderError, eris.Wrap(err, "anthropic: create message"))
}

func errorType(ctx context.Context, err error) string {
	var apiErr *sdk.Error
	switch {
	case ctx.Err() != nil:
		return "timeout"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "api_error"
	}
}
