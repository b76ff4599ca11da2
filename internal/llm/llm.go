package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/metrics"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("LLM provider not configured")

// Provider generates JSON objects from a system and user prompt.
type Provider interface {
	GenerateJSON(ctx context.Context, system, user string) (string, error)
}

// OpenAIProvider is a chat-completions provider constrained to JSON output.
type OpenAIProvider struct {
	Model   string
	client  *openai.Client
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAIProvider creates a provider. baseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		Model:   model,
		client:  openai.NewClientWithConfig(cfg),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("llm"),
	}
}

// IsConfigured reports whether an API key is set.
func (p *OpenAIProvider) IsConfigured() bool {
	return p.apiKey != ""
}

// GenerateJSON sends the prompts with response_format json_object and returns
// the raw message content.
func (p *OpenAIProvider) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	if !p.IsConfigured() {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	metrics.LLMLatency.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequests.WithLabelValues("generation", metrics.OutcomeError).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	metrics.LLMRequests.WithLabelValues("generation", metrics.OutcomeSuccess).Inc()

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion response")
	}

	p.logger.Debug("chat completion",
		zap.String("model", p.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
