package rank

import (
	"strings"
	"sync"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// Deduper tracks products already emitted within one search request. A
// product is a duplicate when its normalized title or its normalized product
// URL has been seen. It is safe for concurrent use by workers.
type Deduper struct {
	mu       sync.Mutex
	titles   map[string]struct{}
	urls     map[string]struct{}
	products []product.Product
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		titles: make(map[string]struct{}),
		urls:   make(map[string]struct{}),
	}
}

// Add records products and returns only the ones not seen before, together
// with the running total.
func (d *Deduper) Add(products []product.Product) ([]product.Product, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fresh := make([]product.Product, 0, len(products))
	for _, p := range products {
		title := normalizeTitle(p.Title)
		if title == "" {
			continue
		}
		if _, seen := d.titles[title]; seen {
			continue
		}
		url := normalizeProductURL(p.ProductURL)
		if url != "" {
			if _, seen := d.urls[url]; seen {
				continue
			}
			d.urls[url] = struct{}{}
		}
		d.titles[title] = struct{}{}
		d.products = append(d.products, p)
		fresh = append(fresh, p)
	}
	return fresh, len(d.products)
}

// Len returns the number of unique products recorded.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.products)
}

// All returns a copy of the unique products in discovery order.
func (d *Deduper) All() []product.Product {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]product.Product(nil), d.products...)
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func normalizeProductURL(raw string) string {
	if raw == "" {
		return ""
	}
	normalized, err := product.NormalizeURL(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return normalized
}
