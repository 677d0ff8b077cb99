package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// ErrMalformedOutput reports a model reply without a parsable JSON array.
var ErrMalformedOutput = errors.New("extract: malformed model output")

// AIConfig tunes model-backed extraction.
type AIConfig struct {
	MaxInputChars   int
	MaxProducts     int
	Attempts        int
	Markdown        bool
	DefaultCurrency string
}

// AI extracts products by prompting a language model with the cleaned page.
type AI struct {
	completer product.Completer
	cleaner   Cleaner
	cfg       AIConfig
	logger    *zap.Logger
}

// NewAI creates a model-backed extractor.
func NewAI(completer product.Completer, cfg AIConfig, logger *zap.Logger) *AI {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.MaxProducts <= 0 {
		cfg.MaxProducts = 30
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = product.DefaultCurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AI{
		completer: completer,
		cleaner:   Cleaner{Markdown: cfg.Markdown, MaxChars: cfg.MaxInputChars},
		cfg:       cfg,
		logger:    logger.Named("ai_extractor"),
	}
}

type aiItem struct {
	Title      string    `json:"title"`
	Price      flexPrice `json:"price"`
	Currency   string    `json:"currency"`
	ImageURL   string    `json:"imageUrl"`
	ProductURL string    `json:"productUrl"`
	Size       string    `json:"size"`
}

// Extract implements product.Extractor. Malformed replies are retried up to
// the configured number of attempts; transport errors are returned at once.
func (a *AI) Extract(ctx context.Context, page product.Page, keyword string) ([]product.Product, error) {
	if strings.TrimSpace(page.HTML) == "" {
		return nil, nil
	}
	content, err := a.cleaner.Clean(page.HTML)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}
	prompt := BuildPrompt(keyword, content, a.cfg.MaxProducts)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.Attempts; attempt++ {
		reply, err := a.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("complete: %w", err)
		}
		items, err := parseReply(reply)
		if err != nil {
			lastErr = err
			a.logger.Debug("model reply not parsable",
				zap.String("site", page.URL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		return a.normalize(items, page), nil
	}
	return nil, lastErr
}

// parseReply decodes the span from the first '[' to the last ']' of reply.
func parseReply(reply string) ([]aiItem, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array", ErrMalformedOutput)
	}
	var items []aiItem
	if err := json.Unmarshal([]byte(reply[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return items, nil
}

func (a *AI) normalize(items []aiItem, page product.Page) []product.Product {
	base := page.BaseURL()
	supplier := product.Host(page.URL)
	out := make([]product.Product, 0, len(items))
	for _, item := range items {
		currency := strings.ToUpper(strings.TrimSpace(item.Currency))
		if currency == "" {
			currency = item.Price.currency
		}
		if currency == "" {
			currency = a.cfg.DefaultCurrency
		}
		p := product.Product{
			Title:      strings.TrimSpace(item.Title),
			Price:      item.Price.value,
			Currency:   currency,
			ImageURL:   product.ResolveURL(base, item.ImageURL),
			ProductURL: product.ResolveURL(base, item.ProductURL),
			Size:       strings.TrimSpace(item.Size),
			Supplier:   supplier,
		}
		if !p.Valid() {
			continue
		}
		out = append(out, p)
		if len(out) == a.cfg.MaxProducts {
			break
		}
	}
	return dropSharedPageLink(out, base)
}

// dropSharedPageLink clears links that point back at a page listing several
// products. Products left with neither link nor image are dropped.
func dropSharedPageLink(products []product.Product, base string) []product.Product {
	if len(products) < 2 {
		return products
	}
	page := normalizedLink(base)
	out := products[:0]
	for _, p := range products {
		if page != "" && normalizedLink(p.ProductURL) == page {
			p.ProductURL = ""
		}
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

func normalizedLink(raw string) string {
	if raw == "" {
		return ""
	}
	n, err := product.NormalizeURL(raw)
	if err != nil {
		return raw
	}
	return n
}
