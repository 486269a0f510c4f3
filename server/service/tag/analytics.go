package tag

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	"github.com/hrygo/bookcircle/server/internal/observability"
	"github.com/hrygo/bookcircle/store"
)

const (
	heatmapTopTags = 10
	currentWindow  = 7 * 24 * time.Hour

	// trendPeriods is the number of recent periods compared by the decline rate.
	trendPeriods = 4
)

// HeatmapTag is a tag ranked within a heatmap cell.
type HeatmapTag struct {
	TagID   int32  `json:"tagId"`
	TagName string `json:"tagName"`
	Count   int    `json:"count"`
}

// HeatmapCell counts approved taggings of one tag type on one entity type.
type HeatmapCell struct {
	EntityType string        `json:"entityType"`
	TagType    string        `json:"tagType"`
	UsageCount int           `json:"usageCount"`
	TopTags    []*HeatmapTag `json:"topTags"`
}

// TagLifecycle describes how usage of a tag evolved. Rates are percentages.
type TagLifecycle struct {
	TagID         int32   `json:"tagId"`
	TagName       string  `json:"tagName"`
	CreatedTs     int64   `json:"createdTs"`
	GrowthRate    float64 `json:"growthRate"`
	DeclineRate   float64 `json:"declineRate"`
	PeakUsage     int     `json:"peakUsage"`
	PeakTs        int64   `json:"peakTs"`
	CurrentUsage  int     `json:"currentUsage"`
	RetentionRate float64 `json:"retentionRate"`
}

// Heatmap groups approved taggings by entity type and tag type, with the ten most
// used tags of each group. Cells are ordered by entity type, then tag type.
func (s *Service) Heatmap(ctx context.Context) (cells []*HeatmapCell, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpHeatmap, start, err) }()

	approved := store.TaggingApproved
	taggings, err := s.store.ListTaggings(ctx, &store.FindTagging{Status: &approved})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list taggings")
	}
	tags, err := s.tagsByID(ctx, taggings)
	if err != nil {
		return nil, err
	}

	type cellKey struct{ entityType, tagType string }
	byKey := make(map[cellKey]*HeatmapCell)
	counts := make(map[cellKey]map[int32]*HeatmapTag)
	for _, t := range taggings {
		tag, ok := tags[t.TagID]
		if !ok {
			continue
		}
		key := cellKey{t.EntityType, tag.Type}
		cell, ok := byKey[key]
		if !ok {
			cell = &HeatmapCell{EntityType: t.EntityType, TagType: tag.Type}
			byKey[key] = cell
			counts[key] = make(map[int32]*HeatmapTag)
		}
		cell.UsageCount++
		top, ok := counts[key][tag.ID]
		if !ok {
			top = &HeatmapTag{TagID: tag.ID, TagName: tag.Name}
			counts[key][tag.ID] = top
		}
		top.Count++
	}

	cells = make([]*HeatmapCell, 0, len(byKey))
	for key, cell := range byKey {
		top := make([]*HeatmapTag, 0, len(counts[key]))
		for _, t := range counts[key] {
			top = append(top, t)
		}
		sort.Slice(top, func(i, j int) bool {
			if top[i].Count != top[j].Count {
				return top[i].Count > top[j].Count
			}
			return top[i].TagID < top[j].TagID
		})
		if len(top) > heatmapTopTags {
			top = top[:heatmapTopTags]
		}
		cell.TopTags = top
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].EntityType != cells[j].EntityType {
			return cells[i].EntityType < cells[j].EntityType
		}
		return cells[i].TagType < cells[j].TagType
	})
	return cells, nil
}

// Lifecycle computes the usage history of a tag from its approved taggings, bucketed
// by calendar month (UTC).
func (s *Service) Lifecycle(ctx context.Context, tagID int32) (lifecycle *TagLifecycle, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpLifecycle, start, err) }()

	t, err := s.store.GetTag(ctx, &store.FindTag{ID: &tagID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tag")
	}
	if t == nil {
		return nil, apierrors.NotFound("tag %d not found", tagID)
	}

	approved := store.TaggingApproved
	taggings, err := s.store.ListTaggings(ctx, &store.FindTagging{TagID: &tagID, Status: &approved})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list taggings")
	}

	lifecycle = &TagLifecycle{
		TagID:     t.ID,
		TagName:   t.Name,
		CreatedTs: t.CreatedTs,
		PeakTs:    t.CreatedTs,
	}
	if len(taggings) == 0 {
		return lifecycle, nil
	}

	// Oldest first.
	sort.SliceStable(taggings, func(i, j int) bool {
		if taggings[i].CreatedTs != taggings[j].CreatedTs {
			return taggings[i].CreatedTs < taggings[j].CreatedTs
		}
		return taggings[i].ID < taggings[j].ID
	})

	usage := make(map[string]int)
	var periods []string
	taggers := make(map[int32]int)
	cutoff := s.now().Add(-currentWindow).Unix()
	for _, tg := range taggings {
		period := time.Unix(tg.CreatedTs, 0).UTC().Format("2006-01")
		if _, ok := usage[period]; !ok {
			periods = append(periods, period)
		}
		usage[period]++
		if usage[period] > lifecycle.PeakUsage {
			lifecycle.PeakUsage = usage[period]
			lifecycle.PeakTs = tg.CreatedTs
		}
		if tg.CreatedTs >= cutoff {
			lifecycle.CurrentUsage++
		}
		if tg.TaggedBy != 0 {
			taggers[tg.TaggedBy]++
		}
	}

	mid := len(periods) / 2
	if first := averageUsage(usage, periods[:mid]); first > 0 {
		lifecycle.GrowthRate = (averageUsage(usage, periods[mid:]) - first) / first * 100
	}

	recentFrom := max(len(periods)-trendPeriods, 0)
	olderFrom := max(len(periods)-2*trendPeriods, 0)
	if older := averageUsage(usage, periods[olderFrom:recentFrom]); older > 0 {
		lifecycle.DeclineRate = (older - averageUsage(usage, periods[recentFrom:])) / older * 100
	}

	if len(taggers) > 0 {
		repeat := 0
		for _, n := range taggers {
			if n > 1 {
				repeat++
			}
		}
		lifecycle.RetentionRate = float64(repeat) / float64(len(taggers)) * 100
	}
	return lifecycle, nil
}

func averageUsage(usage map[string]int, periods []string) float64 {
	if len(periods) == 0 {
		return 0
	}
	total := 0
	for _, p := range periods {
		total += usage[p]
	}
	return float64(total) / float64(len(periods))
}

func (s *Service) tagsByID(ctx context.Context, taggings []*store.Tagging) (map[int32]*store.Tag, error) {
	byID := make(map[int32]*store.Tag)
	if len(taggings) == 0 {
		return byID, nil
	}
	ids := make([]int32, 0)
	seen := make(map[int32]bool)
	for _, t := range taggings {
		if !seen[t.TagID] {
			seen[t.TagID] = true
			ids = append(ids, t.TagID)
		}
	}
	tags, err := s.store.ListTags(ctx, &store.FindTag{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tags")
	}
	for _, t := range tags {
		byID[t.ID] = t
	}
	return byID, nil
}
