package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CacheMetrics tracks cache performance
type CacheMetrics struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
}

// UnifiedCache is a generic in-process cache with TTL and a size cap.
// When the cap is reached, the entry closest to expiry is evicted.
type UnifiedCache[T any] struct {
	mu      sync.RWMutex
	items   map[string]cacheEntry[T]
	ttl     time.Duration
	maxSize int
	name    string // For logging/debugging
	logger  *zap.Logger
	done    chan struct{}

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

type cacheEntry[T any] struct {
	value      T
	expiration int64
}

// NewUnifiedCache creates a generic cache with the given default TTL, size
// cap (0 means unbounded) and name. A janitor goroutine sweeps expired
// entries twice per TTL period until Stop is called.
func NewUnifiedCache[T any](ttl time.Duration, maxSize int, name string, logger *zap.Logger) *UnifiedCache[T] {
	if logger == nil {
		logger = zap.NewNop() // Use no-op logger if none provided
	}
	c := &UnifiedCache[T]{
		items:   make(map[string]cacheEntry[T]),
		ttl:     ttl,
		maxSize: maxSize,
		name:    name,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Set stores an item under the cache's default TTL.
func (c *UnifiedCache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores an item with an explicit TTL, evicting the
// nearest-to-expiry entry first when the cache is at capacity.
func (c *UnifiedCache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		if _, exists := c.items[key]; !exists {
			c.evictOldestLocked()
		}
	}

	c.items[key] = cacheEntry[T]{
		value:      value,
		expiration: time.Now().Add(ttl).UnixNano(),
	}
	c.sets.Add(1)

	c.logger.Debug("Cache set",
		zap.String("cache", c.name),
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
}

// Get retrieves an item from the cache
func (c *UnifiedCache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found || time.Now().UnixNano() > item.expiration {
		c.misses.Add(1)
		var zero T
		c.logger.Debug("Cache miss",
			zap.String("cache", c.name),
			zap.String("key", key),
		)
		return zero, false
	}

	c.hits.Add(1)
	c.logger.Debug("Cache hit",
		zap.String("cache", c.name),
		zap.String("key", key),
	)
	return item.value, true
}

// Delete removes an item from the cache
func (c *UnifiedCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *UnifiedCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheEntry[T])
	c.logger.Info("Cache cleared",
		zap.String("cache", c.name),
	)
}

// GetMetrics returns current cache metrics
func (c *UnifiedCache[T]) GetMetrics() CacheMetrics {
	return CacheMetrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Size returns the number of items in the cache
func (c *UnifiedCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop terminates the janitor goroutine.
func (c *UnifiedCache[T]) Stop() {
	close(c.done)
}

// evictOldestLocked drops the entry with the earliest expiration.
// Caller holds the write lock.
func (c *UnifiedCache[T]) evictOldestLocked() {
	var oldestKey string
	var oldestExp int64
	for key, item := range c.items {
		if oldestKey == "" || item.expiration < oldestExp {
			oldestKey = key
			oldestExp = item.expiration
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.evictions.Add(1)
		c.logger.Debug("Cache evicted",
			zap.String("cache", c.name),
			zap.String("key", oldestKey),
		)
	}
}

// cleanup runs periodically to remove expired items
func (c *UnifiedCache[T]) cleanup() {
	interval := c.ttl / 2 // Run cleanup twice per TTL period
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		now := time.Now().UnixNano()
		expiredCount := 0

		for key, item := range c.items {
			if now > item.expiration {
				delete(c.items, key)
				expiredCount++
			}
		}

		if expiredCount > 0 {
			c.logger.Info("Cache cleanup",
				zap.String("cache", c.name),
				zap.Int("expired_items", expiredCount),
				zap.Int("remaining_items", len(c.items)),
			)
		}
		c.mu.Unlock()
	}
}

// CacheKeyBuilder helps build consistent cache keys
type CacheKeyBuilder struct {
	components []interface{}
}

// NewCacheKeyBuilder creates a new cache key builder
func NewCacheKeyBuilder() *CacheKeyBuilder {
	return &CacheKeyBuilder{
		components: make([]interface{}, 0, 8),
	}
}

// Add adds a component to the cache key
func (b *CacheKeyBuilder) Add(key string, value interface{}) *CacheKeyBuilder {
	b.components = append(b.components, map[string]interface{}{key: value})
	return b
}

// AddQuery adds the normalized query text to the cache key
func (b *CacheKeyBuilder) AddQuery(query string) *CacheKeyBuilder {
	return b.Add("query", query)
}

// AddLanguage adds the provider language to the cache key
func (b *CacheKeyBuilder) AddLanguage(language string) *CacheKeyBuilder {
	return b.Add("language", language)
}

// AddRegion adds the region code to the cache key
func (b *CacheKeyBuilder) AddRegion(region string) *CacheKeyBuilder {
	return b.Add("region", region)
}

// AddFilters adds the resolved shared filters to the cache key
func (b *CacheKeyBuilder) AddFilters(filters interface{}) *CacheKeyBuilder {
	return b.Add("filters", filters)
}

// Build generates the final cache key as an MD5 hash
func (b *CacheKeyBuilder) Build() (string, error) {
	// Marshal components to JSON for consistent hashing
	jsonBytes, err := json.Marshal(b.components)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key components: %w", err)
	}

	hash := md5.Sum(jsonBytes)
	return hex.EncodeToString(hash[:]), nil
}
