package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Item is a cached value with expiration
type Item[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// IsExpired reports whether the item has expired at now
func (i *Item[V]) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Config configures a Cache
type Config struct {
	TTL             time.Duration
	MaxItems        int           // 0 means unbounded
	CleanupInterval time.Duration // 0 disables the background sweep
}

// Cache is a thread-safe TTL cache. When full, the entry closest to expiry
// is evicted.
type Cache[V any] struct {
	mu     sync.RWMutex
	items  map[string]*Item[V]
	config Config
	now    func() time.Time

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a cache. Call Close to stop the cleanup goroutine.
func New[V any](config Config) *Cache[V] {
	c := &Cache[V]{
		items:  make(map[string]*Item[V]),
		config: config,
		now:    time.Now,
		done:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop()
	}

	return c
}

// WithClock replaces the time source
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.now = now
	return c
}

// Key derives a stable key from parts
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache[V]) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Prune()
		case <-c.done:
			return
		}
	}
}

// Prune removes expired items
func (c *Cache[V]) Prune() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// Get retrieves a live item
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || item.IsExpired(c.now()) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// Set stores value under key
func (c *Cache[V]) Set(key string, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		c.evictLocked(now)
	}

	c.items[key] = &Item[V]{
		Value:     value,
		ExpiresAt: now.Add(c.config.TTL),
	}
}

// evictLocked drops expired items, or the one expiring soonest when none are
func (c *Cache[V]) evictLocked(now time.Time) {
	var (
		victim string
		oldest time.Time
	)
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
			continue
		}
		if victim == "" || item.ExpiresAt.Before(oldest) {
			victim, oldest = key, item.ExpiresAt
		}
	}
	if len(c.items) >= c.config.MaxItems && victim != "" {
		delete(c.items, victim)
	}
}

// Delete removes an item
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*Item[V])
}

// Size returns the number of stored items, expired or not
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache[V]) Stats() map[string]interface{} {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	totalItems := len(c.items)
	expiredItems := 0
	for _, item := range c.items {
		if item.IsExpired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"max_items":     c.config.MaxItems,
		"ttl_seconds":   c.config.TTL.Seconds(),
	}
}

// Close stops the cleanup goroutine
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}
