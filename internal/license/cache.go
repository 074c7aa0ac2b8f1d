package license

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidTTL is returned when an entry is stored with a non-positive lifetime.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// StatusCache is an expiring key-value store. Expired entries must be
// indistinguishable from entries that were never stored.
type StatusCache interface {
	// Get returns the stored value, or false when the key is absent or expired.
	Get(ctx context.Context, key string) (string, bool)
	// Put stores value under key until ttl elapses.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// HasRecent reports whether key holds an unexpired value.
	HasRecent(ctx context.Context, key string) bool
}

// DefaultSweepInterval is how often MemoryCache drops expired entries.
const DefaultSweepInterval = 5 * time.Minute

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process StatusCache.
type MemoryCache struct {
	entries   map[string]cacheEntry
	mutex     sync.Mutex
	now       func() time.Time
	sweep     time.Duration
	hitCount  int64
	missCount int64
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// WithSweepInterval sets the background cleanup period. Zero disables it.
func WithSweepInterval(d time.Duration) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.sweep = d
	}
}

// NewMemoryCache creates a new in-process cache
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	cache := &MemoryCache{
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
		sweep:    DefaultSweepInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cache)
	}

	if cache.sweep > 0 {
		go cache.cleanup()
	}

	return cache
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.missCount++
		return "", false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		c.missCount++
		return "", false
	}

	c.hitCount++
	return entry.value, true
}

// Put stores a value in cache
func (c *MemoryCache) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

// HasRecent reports whether key holds an unexpired value
func (c *MemoryCache) HasRecent(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() map[string]interface{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	totalRequests := c.hitCount + c.missCount
	hitRatio := float64(0)
	if totalRequests > 0 {
		hitRatio = float64(c.hitCount) / float64(totalRequests)
	}

	return map[string]interface{}{
		"entries":    len(c.entries),
		"hit_count":  c.hitCount,
		"miss_count": c.missCount,
		"hit_ratio":  hitRatio,
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
