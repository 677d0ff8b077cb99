// Package google finds candidate retailer pages with the Google Custom Search
// JSON API.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/JakeFAU/product-search-crawler/internal/cache/memory"
	"github.com/JakeFAU/product-search-crawler/internal/metrics"
	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// ErrNotConfigured is returned when the API key or engine id is missing.
var ErrNotConfigured = errors.New("google API not configured")

// pageSize is the API's maximum results per request.
const pageSize = 10

// Config holds the Custom Search parameters.
type Config struct {
	APIKey string
	CX     string
	// Endpoint overrides the API base URL.
	Endpoint string
	// Results is the number of links to return; values above 10 page through
	// the API.
	Results   int
	Country   string
	Restrict  string
	Blocklist []string
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// Searcher implements product.Searcher.
type Searcher struct {
	cfg       Config
	svc       *customsearch.Service
	blocklist *product.DomainBlocklist
	cache     *memory.Cache[[]string]
	logger    *zap.Logger
}

// New builds a Searcher. Missing credentials do not fail construction; every
// Search call reports ErrNotConfigured instead.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Searcher, error) {
	if cfg.Results <= 0 {
		cfg.Results = pageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Searcher{
		cfg:       cfg,
		blocklist: product.NewDomainBlocklist(cfg.Blocklist),
		cache:     memory.New[[]string](cfg.CacheTTL),
		logger:    logger.Named("google_search"),
	}
	if cfg.APIKey == "" || cfg.CX == "" {
		return s, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	s.svc = svc
	return s, nil
}

// Search returns up to Results normalized, deduplicated, non-blocked URLs in
// rank order.
func (s *Searcher) Search(ctx context.Context, keyword string) ([]string, error) {
	if s.svc == nil {
		return nil, ErrNotConfigured
	}
	key := strings.ToLower(strings.Join(strings.Fields(keyword), " "))
	if cached, ok := s.cache.Get(key); ok {
		metrics.ObserveSearchCall("cache_hit")
		return append([]string(nil), cached...), nil
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	seen := make(map[string]struct{})
	var urls []string
	// The API serves at most 100 results, ten per page.
	for start := int64(1); start <= int64(s.cfg.Results) && start <= 91; start += pageSize {
		num := int64(s.cfg.Results) - start + 1
		if num > pageSize {
			num = pageSize
		}
		call := s.svc.Cse.List().Q(keyword).Cx(s.cfg.CX).Num(num).Start(start)
		if s.cfg.Country != "" {
			call = call.Gl(s.cfg.Country)
		}
		if s.cfg.Restrict != "" {
			call = call.Cr(s.cfg.Restrict)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			metrics.ObserveSearchCall("error")
			return nil, fmt.Errorf("custom search: %w", err)
		}
		for _, item := range resp.Items {
			if item == nil {
				continue
			}
			normalized, err := product.NormalizeURL(item.Link)
			if err != nil {
				s.logger.Debug("skipping result", zap.String("link", item.Link), zap.Error(err))
				continue
			}
			if s.blocklist.IsBlockedURL(normalized) {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			urls = append(urls, normalized)
		}
		if len(resp.Items) < int(num) {
			break
		}
	}
	if len(urls) > s.cfg.Results {
		urls = urls[:s.cfg.Results]
	}

	metrics.ObserveSearchCall("ok")
	s.cache.Set(key, urls)
	s.logger.Info("search complete", zap.String("keyword", keyword), zap.Int("urls", len(urls)))
	return append([]string(nil), urls...), nil
}
