package settings

import (
	"context"
	"time"

	"github.com/dallosh/analysis/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const cacheKey = "settings"

// CachedReader keeps the last settings document for a short TTL. Misses are
// never cached so a newly saved document is picked up on the next call.
type CachedReader struct {
	next  Reader
	cache *expirable.LRU[string, *Settings]
}

// NewCachedReader wraps next. A non-positive ttl returns next unchanged.
func NewCachedReader(next Reader, ttl time.Duration) Reader {
	if ttl <= 0 {
		return next
	}
	return &CachedReader{
		next:  next,
		cache: expirable.NewLRU[string, *Settings](1, nil, ttl),
	}
}

func (c *CachedReader) Get(ctx context.Context) (*Settings, error) {
	if s, ok := c.cache.Get(cacheKey); ok {
		return s, nil
	}
	s, err := c.next.Get(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(cacheKey, s)
	logger.FromContext(ctx).Debug("Settings cached", "uid", s.UID)
	return s, nil
}

// Invalidate drops the cached document.
func (c *CachedReader) Invalidate() {
	c.cache.Purge()
}
