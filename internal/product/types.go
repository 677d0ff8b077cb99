package product

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is applied when a source omits the price currency.
const DefaultCurrency = "AUD"

// ErrQueueClosed is returned by Queue.Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Product is one item discovered on a retailer page.
type Product struct {
	Title      string   `json:"title"`
	Price      *float64 `json:"price"`
	Currency   string   `json:"currency"`
	ImageURL   string   `json:"imageUrl"`
	ProductURL string   `json:"productUrl"`
	Size       string   `json:"size,omitempty"`
	// Supplier is the host of the site the product was found on.
	Supplier string `json:"supplier"`
}

// Valid reports whether the product carries enough data to be shown: a title
// longer than three characters plus an image or a link.
func (p Product) Valid() bool {
	if len([]rune(strings.TrimSpace(p.Title))) <= 3 {
		return false
	}
	return p.ImageURL != "" || p.ProductURL != ""
}

// HasPrice reports whether a positive price was extracted.
func (p Product) HasPrice() bool {
	return p.Price != nil && *p.Price > 0
}

// Page is a fetched document ready for extraction.
type Page struct {
	// URL is the address that was requested.
	URL string
	// FinalURL is the address after redirects; relative links resolve against it.
	FinalURL string
	// StatusCode is the main document response status.
	StatusCode int
	// HTML is the serialized DOM (rendered) or raw body (probe).
	HTML string
	// Rendered is true when a headless browser produced the document.
	Rendered bool
	// Duration measures the fetch wall time.
	Duration time.Duration
}

// BaseURL returns the URL that relative references should resolve against.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// SiteTask is one candidate URL queued for a search request.
type SiteTask struct {
	SearchID uuid.UUID
	Keyword  string
	URL      string
	// Index is the 1-based position of URL in the search results.
	Index int
	// Total is the number of URLs in the search results.
	Total int
}
