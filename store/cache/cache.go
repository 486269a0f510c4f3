package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the configuration for the in-memory cache.
type Config struct {
	// DefaultTTL is the expiry used by Set.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired items are swept. Zero disables the sweeper.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size; the item closest to expiry is evicted first.
	MaxItems int
	// OnEviction is called with the key and value of every evicted or expired item.
	OnEviction func(key string, value any)
}

type item struct {
	value      any
	expiration time.Time
}

// Cache is a concurrency-safe TTL cache with a bounded size.
type Cache struct {
	config    Config
	items     sync.Map
	itemCount atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a cache and starts its cleanup goroutine.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}

	c := &Cache{
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	} else {
		close(c.doneCh)
	}
	return c
}

// Set stores a value with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with an explicit TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	if _, loaded := c.items.Swap(key, &item{value: value, expiration: time.Now().Add(ttl)}); !loaded {
		if c.itemCount.Add(1) > int64(c.config.MaxItems) {
			c.evictOne(key)
		}
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	raw, ok := c.items.Load(key)
	if !ok {
		return nil, false
	}
	it := raw.(*item)
	if time.Now().After(it.expiration) {
		c.remove(key, it)
		return nil, false
	}
	return it.value, true
}

// Delete removes key from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	if _, loaded := c.items.LoadAndDelete(key); loaded {
		c.itemCount.Add(-1)
	}
}

// Clear removes every item.
func (c *Cache) Clear(_ context.Context) {
	c.items.Range(func(key, _ any) bool {
		if _, loaded := c.items.LoadAndDelete(key); loaded {
			c.itemCount.Add(-1)
		}
		return true
	})
}

// Size returns the number of items, including expired ones not yet swept.
func (c *Cache) Size() int64 {
	return c.itemCount.Load()
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
	return nil
}

func (c *Cache) cleanupLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) cleanup() {
	now := time.Now()
	c.items.Range(func(key, value any) bool {
		it := value.(*item)
		if now.After(it.expiration) {
			c.remove(key.(string), it)
		}
		return true
	})
}

// evictOne drops the item closest to expiry, never the key just written.
func (c *Cache) evictOne(keep string) {
	var (
		victim     string
		victimItem *item
	)
	c.items.Range(func(key, value any) bool {
		k := key.(string)
		if k == keep {
			return true
		}
		it := value.(*item)
		if victimItem == nil || it.expiration.Before(victimItem.expiration) {
			victim, victimItem = k, it
		}
		return true
	})
	if victimItem != nil {
		c.remove(victim, victimItem)
	}
}

func (c *Cache) remove(key string, it *item) {
	if c.items.CompareAndDelete(key, it) {
		c.itemCount.Add(-1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, it.value)
		}
	}
}
