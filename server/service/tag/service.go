// Package tag implements the tag backend: relevance-ranked search, find-or-create,
// taggings with rate limits and policy checks, previews and topic subscriptions.
package tag

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/bookcircle/internal/profile"
	"github.com/hrygo/bookcircle/plugin/cache"
	"github.com/hrygo/bookcircle/plugin/tagging"
	"github.com/hrygo/bookcircle/server/internal/observability"
	"github.com/hrygo/bookcircle/server/middleware"
	"github.com/hrygo/bookcircle/store"
)

const (
	// DefaultSearchLimit is the number of results returned when no limit is given.
	DefaultSearchLimit = 10
	// DefaultMaxLimit caps the search limit.
	DefaultMaxLimit = 50
	// DefaultSearchCacheTTL is how long search results are cached.
	DefaultSearchCacheTTL = 5 * time.Minute

	searchCachePrefix = "tags:search:"
	// searchFetchLimit bounds the rows read from the store before scoring.
	searchFetchLimit = 200
)

// Config configures the tag service.
type Config struct {
	SearchCacheTTL   time.Duration
	MaxLimit         int
	MentionRateLimit int // per user per minute
	HashtagRateLimit int // per user per minute
	DenyRule         string
	ApprovalRule     string
	MentionsAsText   bool
}

// ConfigFromProfile reads the tag settings of a validated profile.
func ConfigFromProfile(p *profile.Profile) Config {
	return Config{
		SearchCacheTTL:   p.TagSearchCacheTTL,
		MaxLimit:         p.TagSearchMaxLimit,
		MentionRateLimit: p.TagMentionRateLimit,
		HashtagRateLimit: p.TagHashtagRateLimit,
		DenyRule:         p.TagPolicyDenyRule,
		ApprovalRule:     p.TagPolicyApproveRule,
		MentionsAsText:   p.TagMentionsAsText,
	}
}

// Service is the tag backend.
type Service struct {
	store   *store.Store
	cache   cache.CacheService
	metrics *observability.Metrics
	config  Config
	policy  *Policy

	searchGroup    singleflight.Group
	mentionLimiter *middleware.RateLimiter
	hashtagLimiter *middleware.RateLimiter

	now func() time.Time
}

// NewService creates a tag service. A nil cache disables search caching and
// nil metrics are replaced by a private collector.
func NewService(st *store.Store, searchCache cache.CacheService, metrics *observability.Metrics, cfg Config) (*Service, error) {
	if cfg.SearchCacheTTL <= 0 {
		cfg.SearchCacheTTL = DefaultSearchCacheTTL
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if metrics == nil {
		metrics = observability.NewMetrics(0)
	}
	policy, err := NewPolicy(cfg.DenyRule, cfg.ApprovalRule)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile tag policy")
	}
	return &Service{
		store:          st,
		cache:          searchCache,
		metrics:        metrics,
		config:         cfg,
		policy:         policy,
		mentionLimiter: middleware.NewRateLimiter(cfg.MentionRateLimit),
		hashtagLimiter: middleware.NewRateLimiter(cfg.HashtagRateLimit),
		now:            time.Now,
	}, nil
}

// Metrics returns the collector the service records into.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// RenderOptions returns the options used when rendering stored content.
func (s *Service) RenderOptions() tagging.RenderOptions {
	if s.config.MentionsAsText {
		return tagging.RenderOptions{UnresolvedMention: tagging.MentionAsText}
	}
	return tagging.RenderOptions{UnresolvedMention: tagging.MentionAsUser}
}
