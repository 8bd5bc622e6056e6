package embedder

import (
	"context"
	"sync"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
)

// Lazy wraps a Factory so the underlying Embedder client (an HTTP
// connection pool, a credential provider) is only constructed on
// first use: a missing/invalid configuration fails the first Embed
// call rather than startup.
type Lazy struct {
	factory Factory

	mu  sync.Mutex
	emb Embedder
	err error
}

// Factory builds the real Embedder, returning an error if the
// embedding provider isn't configured.
type Factory func() (Embedder, error)

// NewLazy wraps factory in a Lazy.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Embed constructs the underlying Embedder on first call (caching
// both success and failure) and delegates to it.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float64, error) {
	l.mu.Lock()
	if l.emb == nil && l.err == nil {
		l.emb, l.err = l.factory()
		if l.err != nil {
			l.err = dedeperrors.Wrap(dedeperrors.Unavailable, "embedder_not_configured", l.err)
		}
	}
	emb, err := l.emb, l.err
	l.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return emb.Embed(ctx, text)
}
