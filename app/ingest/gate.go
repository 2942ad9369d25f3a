package ingest

import (
	"context"
	"log/slog"
)

// Gate answers whether an article URL is already stored.
type Gate interface {
	Seen(ctx context.Context, url string) (bool, error)
	// Remember is called after the article behind url was written.
	Remember(ctx context.Context, url string)
}

type URLChecker interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
}

// StoreGate asks the article store directly.
type StoreGate struct {
	store URLChecker
}

func NewStoreGate(store URLChecker) *StoreGate {
	return &StoreGate{store: store}
}

func (g *StoreGate) Seen(ctx context.Context, url string) (bool, error) {
	return g.store.ExistsByURL(ctx, url)
}

func (g *StoreGate) Remember(ctx context.Context, url string) {}

type SeenSet interface {
	IsSeen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string) error
}

// CachedGate answers from a seen-set first and falls through to the next
// gate on a miss or a cache error.
type CachedGate struct {
	cache SeenSet
	next  Gate
}

func NewCachedGate(cache SeenSet, next Gate) *CachedGate {
	return &CachedGate{cache: cache, next: next}
}

func (g *CachedGate) Seen(ctx context.Context, url string) (bool, error) {
	hit, err := g.cache.IsSeen(ctx, url)
	if err != nil {
		slog.Warn("Dedup cache lookup failed", "url", url, "error", err)
	} else if hit {
		return true, nil
	}

	seen, err := g.next.Seen(ctx, url)
	if err != nil {
		return false, err
	}
	if seen {
		g.mark(ctx, url)
	}
	return seen, nil
}

func (g *CachedGate) Remember(ctx context.Context, url string) {
	g.mark(ctx, url)
	g.next.Remember(ctx, url)
}

func (g *CachedGate) mark(ctx context.Context, url string) {
	if err := g.cache.MarkSeen(ctx, url); err != nil {
		slog.Warn("Dedup cache update failed", "url", url, "error", err)
	}
}
