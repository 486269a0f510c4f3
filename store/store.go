package store

import (
	"time"

	"github.com/hrygo/bookcircle/internal/profile"
	"github.com/hrygo/bookcircle/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches
	systemSettingCache *cache.Cache // cache for system settings
	tagCache           *cache.Cache // cache for tags by id
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	// Default cache settings
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	store := &Store{
		driver:             driver,
		profile:            profile,
		cacheConfig:        cacheConfig,
		systemSettingCache: cache.New(cacheConfig),
		tagCache:           cache.New(cacheConfig),
	}

	return store
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	// Stop all cache cleanup goroutines
	s.systemSettingCache.Close()
	s.tagCache.Close()

	return s.driver.Close()
}
