package product

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Searcher returns candidate page URLs for a keyword, in rank order.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]string, error)
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Browser is a per-request headless browser. Close tears down every tab and
// the browser process.
type Browser interface {
	Fetcher
	Close() error
}

// BrowserLauncher starts a Browser for one search request.
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}

// RenderDetector decides whether a probed page needs a headless render.
type RenderDetector interface {
	ShouldPromote(page Page) bool
}

// Extractor turns a page into products for a keyword.
type Extractor interface {
	Extract(ctx context.Context, page Page, keyword string) ([]Product, error)
}

// Completer sends one prompt to a language model and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Queue provides enqueue/dequeue semantics for site tasks.
type Queue interface {
	Enqueue(ctx context.Context, task SiteTask) error
	Dequeue(ctx context.Context) (SiteTask, error)
	Close()
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes search summaries to a message bus.
type Publisher interface {
	Publish(ctx context.Context, payload any, attrs map[string]string) (string, error)
}

// Clock abstracts time so tests can pin event timestamps.
type Clock interface {
	Now() time.Time
}

// Hasher derives content digests for snapshot paths.
type Hasher interface {
	Hash(data []byte) string
}

// IDGenerator mints search identifiers.
type IDGenerator interface {
	NewSearchID() (uuid.UUID, error)
}
