package domain

import (
	"context"
	"strings"
)

// ModelName identifies one configured AI model. The set is closed at process start.
type ModelName string

// Default model names.
const (
	ModelChatGPT    ModelName = "chatgpt"
	ModelClaude     ModelName = "claude"
	ModelGemini     ModelName = "gemini"
	ModelPerplexity ModelName = "perplexity"
)

// DefaultModels is used when configuration does not list any models.
func DefaultModels() []ModelName {
	return []ModelName{ModelChatGPT, ModelClaude, ModelGemini}
}

// KeyPrefix namespaces every key written to the KV store.
var KeyPrefix = "aivis:"

// DomainContext is what the system knows about a domain before querying models about it.
type DomainContext struct {
	ID      int64
	URL     string
	Context string
}

// Host returns the bare host of the domain URL ("https://www.acme.io/x" -> "www.acme.io").
func (d DomainContext) Host() string {
	h := d.URL
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if i := strings.LastIndex(h, ":"); i >= 0 {
		h = h[:i]
	}
	return h
}

// Querier is the shared contract for asking a model a question.
type Querier interface {
	Query(ctx context.Context, in QueryInput) (QueryOutput, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// QueryInput is a single phrase sent to a model, optionally with domain context.
type QueryInput struct {
	Phrase        string
	DomainContext string
}

// SystemPrompt returns the system message for the query, empty when there is no context.
// The phrase itself is always sent verbatim as the user message.
func (in QueryInput) SystemPrompt() string {
	if strings.TrimSpace(in.DomainContext) == "" {
		return ""
	}
	return "Answer the user's question as you normally would. Background the user may find relevant: " +
		strings.TrimSpace(in.DomainContext)
}

// Pricing is a model price list in USD per one million tokens.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Cost estimates the spend for one call.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*p.InputPerMillion + float64(outputTokens)*p.OutputPerMillion) / 1e6
}

// QueryOutput carries the model answer and token usage through the decorator chain.
type QueryOutput struct {
	Response     string
	Cost         float64 // USD
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns input plus output tokens.
func (o QueryOutput) TotalTokens() int { return o.InputTokens + o.OutputTokens }
