// Package product holds the domain types and narrow interfaces shared by the
// search pipeline: products and fetched pages, the per-request site task, and
// the contracts implemented by searchers, fetchers, extractors, stores, and
// publishers. It must not import concrete clients.
package product
