package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/config"
	"github.com/JakeFAU/product-search-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// ResolveProvider picks the provider for cfg. "auto" prefers OpenAI when its
// key is present and falls back to Gemini.
func ResolveProvider(cfg config.AIConfig) string {
	switch p := strings.ToLower(cfg.Provider); p {
	case ProviderOpenAI, ProviderGemini:
		return p
	}
	if cfg.OpenAI.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderGemini
}

// FromConfig builds the completer selected by cfg, rate limited when
// requests_per_second is set.
func FromConfig(cfg config.AIConfig, logger *zap.Logger) (product.Completer, error) {
	provider := ResolveProvider(cfg)
	pc := cfg.OpenAI
	if provider == ProviderGemini {
		pc = cfg.Gemini
	}
	client, err := New(Config{
		Provider:    provider,
		APIKey:      pc.APIKey,
		Model:       pc.Model,
		BaseURL:     pc.BaseURL,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}
	if logger != nil {
		logger.Info("model client ready", zap.String("provider", provider), zap.String("model", pc.Model))
	}
	if cfg.RequestsPerSecond <= 0 {
		return client, nil
	}
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.RequestsPerSecond, DefaultBurst: cfg.Burst})
	return NewLimited(client, limiter, "llm:"+provider), nil
}
