package marketdata

import (
	"fmt"
	"sync"
	"time"

	"marketpulse-backend/models"
)

// DefaultCacheTTL bounds how long a fetched quote is served without a
// fresh upstream call.
const DefaultCacheTTL = 5 * time.Second

// QuoteCache guards upstream calls against redundant requests within a
// burst. Implementations must be safe for concurrent use. The cache is
// best-effort: every fetch path works correctly against a cold cache.
type QuoteCache interface {
	Get(key string) (*models.Quote, bool)
	Set(key string, quote *models.Quote)
}

// CacheKey builds the cache key for a symbol within an asset class
func CacheKey(symbol string, class models.AssetClass) string {
	return fmt.Sprintf("%s:%s", class, symbol)
}

type cacheEntry struct {
	quote    *models.Quote
	storedAt time.Time
}

// TTLQuoteCache is a mutex-guarded map with per-entry expiry. Volume is
// bounded by the number of distinct symbols in flight, so no eviction
// beyond expiry is needed.
type TTLQuoteCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLQuoteCache creates a cache with the given TTL. A TTL of zero
// falls back to DefaultCacheTTL.
func NewTTLQuoteCache(ttl time.Duration) *TTLQuoteCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &TTLQuoteCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached quote if present and not expired
func (c *TTLQuoteCache) Get(key string) (*models.Quote, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		// Expired entries behave as absent
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.quote, true
}

// Set stores a quote, resetting its expiry window
func (c *TTLQuoteCache) Set(key string, quote *models.Quote) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{quote: quote, storedAt: c.now()}
	c.mu.Unlock()
}
