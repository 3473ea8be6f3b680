package markdown

import (
	"context"
	"fmt"

	"lira/internal/cachemanager"
)

// CachedRenderer memoizes rendered markdown keyed by content and width.
// Timeline entries are re-rendered on every window resize; explanations and
// hypothesis lists do not change once received, so renders are cached.
type CachedRenderer struct {
	renderer *Renderer
	cache    cachemanager.CacheManager[string, string]
}

// NewCached wraps a Renderer with an in-memory render cache.
func NewCached(width int, style string) (*CachedRenderer, error) {
	r, err := New(width, style)
	if err != nil {
		return nil, err
	}
	return &CachedRenderer{
		renderer: r,
		cache: cachemanager.NewInMemoryCacheManager[string, string](
			"markdown", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval,
		),
	}, nil
}

// Width returns the configured word wrap width.
func (c *CachedRenderer) Width() int {
	return c.renderer.Width()
}

// Render returns the cached render of markdown, rendering on a miss.
func (c *CachedRenderer) Render(markdown string) (string, error) {
	key := fmt.Sprintf("%d:%s", c.renderer.Width(), markdown)

	if out, ok := c.cache.Get(context.Background(), key); ok {
		return out, nil
	}

	out, err := c.renderer.Render(markdown)
	if err != nil {
		return "", err
	}

	c.cache.Set(context.Background(), key, out, cachemanager.DefaultExpiration)

	return out, nil
}
