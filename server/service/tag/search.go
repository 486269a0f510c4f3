package tag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/bookcircle/plugin/tagging"
	"github.com/hrygo/bookcircle/server/internal/observability"
	"github.com/hrygo/bookcircle/store"
)

// Search returns active tags matching the query, best first.
func (s *Service) Search(ctx context.Context, req SearchRequest) (results []tagging.TagCandidate, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpSearch, start, err) }()

	term := strings.ToLower(strings.TrimSpace(req.Query))
	if term == "" {
		return []tagging.TagCandidate{}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	kinds := kindStrings(req.Kinds)
	key := searchCacheKey(term, kinds, limit)

	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			if err := json.Unmarshal(raw, &results); err == nil {
				s.metrics.RecordCacheHit()
				return results, nil
			}
		}
		s.metrics.RecordCacheMiss()
	}

	v, err, _ := s.searchGroup.Do(key, func() (any, error) {
		found, err := s.search(ctx, term, kinds, limit)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(found); err == nil {
				if err := s.cache.Set(ctx, key, raw, s.config.SearchCacheTTL); err != nil {
					slog.Warn("failed to cache tag search", slog.String("key", key), slog.Any("error", err))
				}
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]tagging.TagCandidate), nil
}

func (s *Service) search(ctx context.Context, term string, kinds []string, limit int) ([]tagging.TagCandidate, error) {
	normal := store.Normal
	fetch := searchFetchLimit

	var direct, viaAlias []*store.Tag
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tags, err := s.store.ListTags(gctx, &store.FindTag{
			Query:     &term,
			Types:     kinds,
			RowStatus: &normal,
			Limit:     &fetch,
		})
		if err != nil {
			return errors.Wrap(err, "failed to search tags")
		}
		direct = tags
		return nil
	})
	g.Go(func() error {
		aliases, err := s.store.ListTagAliases(gctx, &store.FindTagAlias{Query: &term, Limit: &fetch})
		if err != nil {
			return errors.Wrap(err, "failed to search tag aliases")
		}
		if len(aliases) == 0 {
			return nil
		}
		ids := make([]int32, 0, len(aliases))
		for _, alias := range aliases {
			ids = append(ids, alias.TagID)
		}
		tags, err := s.store.ListTags(gctx, &store.FindTag{IDs: ids, Types: kinds, RowStatus: &normal})
		if err != nil {
			return errors.Wrap(err, "failed to load aliased tags")
		}
		viaAlias = tags
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int32]bool, len(direct)+len(viaAlias))
	scored := make([]scoredTag, 0, len(direct)+len(viaAlias))
	now := s.now()
	for _, list := range [][]*store.Tag{direct, viaAlias} {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			scored = append(scored, scoredTag{tag: t, score: relevanceScore(t, term, now)})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].tag.UsageCount > scored[j].tag.UsageCount
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	results := make([]tagging.TagCandidate, 0, len(scored))
	for _, st := range scored {
		results = append(results, Candidate(st.tag))
	}
	return results, nil
}

// InvalidateSearchCache drops every cached search result.
func (s *Service) InvalidateSearchCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, searchCachePrefix+"*"); err != nil {
		slog.Warn("failed to invalidate tag search cache", slog.Any("error", err))
	}
}

type scoredTag struct {
	tag   *store.Tag
	score float64
}

// relevanceScore ranks a tag for term:
// popularity up to 40, match quality up to 30, recency up to 20, similarity up to 10.
func relevanceScore(t *store.Tag, term string, now time.Time) float64 {
	score := float64(min(t.UsageCount, 100)) / 100 * 40

	name := strings.ToLower(t.Name)
	slug := strings.ToLower(t.Slug)
	switch {
	case name == term || slug == term:
		score += 30
	case strings.HasPrefix(name, term) || strings.HasPrefix(slug, term):
		score += 20
	case strings.Contains(name, term) || strings.Contains(slug, term):
		score += 10
	}

	if t.CreatedTs > 0 {
		days := now.Sub(time.Unix(t.CreatedTs, 0)).Hours() / 24
		if days >= 0 && days < 30 {
			score += (1 - days/30) * 20
		}
	}

	score += max(similarity(name, term), similarity(slug, term)) * 10
	return score
}

// similarity is a 0..1 overlap measure between two strings.
func similarity(a, b string) float64 {
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	if len(longer) == 0 {
		return 1
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}
	matches := 0
	for i := 0; i < len(shorter); i++ {
		if strings.IndexByte(longer, shorter[i]) >= 0 {
			matches++
		}
	}
	return float64(matches) / float64(len(longer))
}

func searchCacheKey(term string, kinds []string, limit int) string {
	return fmt.Sprintf("%s%s:%s:%d", searchCachePrefix, term, strings.Join(kinds, ","), limit)
}

func kindStrings(kinds []tagging.TagKind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Candidate converts a stored tag to its search representation.
func Candidate(t *store.Tag) tagging.TagCandidate {
	return tagging.TagCandidate{
		ID:            strconv.Itoa(int(t.ID)),
		Name:          t.Name,
		Slug:          t.Slug,
		Kind:          tagging.TagKind(t.Type),
		Sublabel:      sublabel(t),
		AvatarURL:     t.Metadata.AvatarURL,
		EntityID:      t.Metadata.EntityID,
		EntitySubtype: t.Metadata.EntityType,
	}
}

func sublabel(t *store.Tag) string {
	if t.Metadata.Sublabel != "" {
		return t.Metadata.Sublabel
	}
	switch tagging.TagKind(t.Type) {
	case tagging.KindUser:
		if t.Metadata.Permalink != "" {
			return "@" + t.Metadata.Permalink
		}
		return "@" + t.Slug
	case tagging.KindEntity:
		if subtype := t.Metadata.EntityType; subtype != "" {
			return strings.ToUpper(subtype[:1]) + subtype[1:]
		}
	}
	return ""
}

// toRecord converts a stored tag to the record used when rendering.
func toRecord(t *store.Tag) tagging.TaggingRecord {
	return tagging.TaggingRecord{
		Slug:          t.Slug,
		Name:          t.Name,
		Kind:          tagging.TagKind(t.Type),
		EntityID:      t.Metadata.EntityID,
		EntitySubtype: t.Metadata.EntityType,
		AvatarURL:     t.Metadata.AvatarURL,
		Sublabel:      sublabel(t),
	}
}
