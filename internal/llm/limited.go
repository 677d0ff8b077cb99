package llm

import (
	"context"

	"github.com/JakeFAU/product-search-crawler/internal/product"
)

// Waiter blocks until the caller may proceed for key.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Limited paces calls to an underlying completer.
type Limited struct {
	next    product.Completer
	limiter Waiter
	key     string
}

// NewLimited wraps next so every call first waits on limiter under key.
func NewLimited(next product.Completer, limiter Waiter, key string) *Limited {
	return &Limited{next: next, limiter: limiter, key: key}
}

// Complete waits for a token and forwards the prompt.
func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx, l.key); err != nil {
		return "", err
	}
	return l.next.Complete(ctx, prompt)
}
