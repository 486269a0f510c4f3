// Package cache provides the byte cache used for tag search results.
package cache

import (
	"context"
	"sync"
	"time"
)

// CacheService is the cache used by the tag service.
type CacheService interface {
	// Get returns the cached value and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value for ttl; a non-positive ttl uses the default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes a key, or a key prefix when pattern ends with "*".
	Invalidate(ctx context.Context, pattern string) error
}

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	Capacity        int           // Maximum number of entries (default: 1000)
	DefaultTTL      time.Duration // Default TTL for entries (default: 5 minutes)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 1 minute)
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:        1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Service is an LRU CacheService with a background sweeper for expired entries.
type Service struct {
	lru *LRUCache

	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	sweepTick time.Duration
}

// NewService creates a cache service and starts its sweeper.
func NewService(cfg ServiceConfig) *Service {
	defaults := DefaultServiceConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaults.DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	s := &Service{
		lru:       NewLRUCache(cfg.Capacity, cfg.DefaultTTL),
		stop:      make(chan struct{}),
		sweepTick: cfg.CleanupInterval,
	}
	s.wg.Add(1)
	go s.sweep()
	return s
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Service) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *Service) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

func (s *Service) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Set(key, value, ttl)
	return nil
}

func (s *Service) Invalidate(_ context.Context, pattern string) error {
	s.lru.Invalidate(pattern)
	return nil
}

// Size returns the number of cached entries.
func (s *Service) Size() int {
	return s.lru.Size()
}

// Stats returns the hit and miss counts.
func (s *Service) Stats() (hits, misses int64) {
	return s.lru.Stats()
}

func (s *Service) sweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.lru.CleanupExpired()
		}
	}
}

var _ CacheService = (*Service)(nil)
