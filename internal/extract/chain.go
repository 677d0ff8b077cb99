package extract

import (
	"context"

	"github.com/JakeFAU/product-search-crawler/internal/metrics"
	"github.com/JakeFAU/product-search-crawler/internal/product"
	"github.com/JakeFAU/product-search-crawler/internal/rank"
)

// Chain runs the structured extractor first and only falls back to the model
// when structured data yields nothing that matches the keyword.
type Chain struct {
	structured product.Extractor
	ai         product.Extractor
	ranking    rank.Config
}

// NewChain builds a Chain. Either extractor may be nil.
func NewChain(structured, ai product.Extractor, ranking rank.Config) *Chain {
	return &Chain{structured: structured, ai: ai, ranking: ranking}
}

// Extract implements product.Extractor.
func (c *Chain) Extract(ctx context.Context, page product.Page, keyword string) ([]product.Product, error) {
	var found []product.Product
	if c.structured != nil {
		products, err := c.structured.Extract(ctx, page, keyword)
		if err == nil {
			found = products
			if len(rank.NewMatcher(keyword, c.ranking).Filter(products)) > 0 {
				metrics.ObserveExtraction("structured")
				return products, nil
			}
		}
	}
	if c.ai == nil {
		metrics.ObserveExtraction("none")
		return found, nil
	}
	products, err := c.ai.Extract(ctx, page, keyword)
	if err != nil {
		metrics.ObserveExtraction("none")
		return nil, err
	}
	metrics.ObserveExtraction("ai")
	return products, nil
}
