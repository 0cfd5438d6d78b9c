// Package llm wraps the chat model behind a narrow interface so the
// enhancer, composer, and LLM-judge reranker share one client.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrChatFailed indicates the chat call failed.
	ErrChatFailed = errors.New("chat completion failed")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

// Client is the chat interface consumed by the pipeline. Timeouts are
// carried by ctx; callers derive one from their remaining stage deadline.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Config holds chat model configuration.
type Config struct {
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string

	// Model is the chat model identifier.
	Model string

	// APIKey authenticates against the provider.
	APIKey string

	// Temperature controls sampling; grounded answering wants it low.
	Temperature float64
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// OpenAIClient implements Client via langchaingo's OpenAI-compatible client.
type OpenAIClient struct {
	model       llms.Model
	temperature float64
}

// New creates a chat client from config.
func New(cfg Config) (*OpenAIClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	return &OpenAIClient{model: model, temperature: cfg.Temperature}, nil
}

// Chat sends a system+user message pair and returns the model's text.
func (c *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChatFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
