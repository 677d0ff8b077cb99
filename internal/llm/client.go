// Package llm adapts OpenAI-compatible chat completion APIs to
// product.Completer. Gemini is reached through Google's OpenAI-compatible
// endpoint, so one client serves both providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/JakeFAU/product-search-crawler/internal/metrics"
)

// ErrNoKey is returned when a provider is selected without an API key.
var ErrNoKey = errors.New("llm: api key not configured")

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderAuto   = "auto"
)

// Config describes one chat completion endpoint.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	// Timeout bounds a single completion call. Zero leaves it to the caller.
	Timeout time.Duration
}

// Client sends single-turn prompts to a chat completion endpoint.
type Client struct {
	cfg Config
	api *openai.Client
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNoKey)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model is required", cfg.Provider)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{cfg: cfg, api: openai.NewClientWithConfig(clientCfg)}, nil
}

// Provider returns the provider name used for metrics and logs.
func (c *Client) Provider() string {
	return c.cfg.Provider
}

// Complete sends prompt as a user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	// go-openai omits a zero temperature, which the API reads as its default of 1.
	temperature := c.cfg.Temperature
	if temperature <= 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		metrics.ObserveModelCall(c.cfg.Provider, "error", time.Since(start))
		return "", fmt.Errorf("%s chat completion: %w", c.cfg.Provider, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveModelCall(c.cfg.Provider, "empty", time.Since(start))
		return "", fmt.Errorf("%s chat completion: no choices returned", c.cfg.Provider)
	}
	metrics.ObserveModelCall(c.cfg.Provider, "ok", time.Since(start))
	return resp.Choices[0].Message.Content, nil
}
