package tag

import (
	"context"
	"time"

	"github.com/hrygo/bookcircle/plugin/tagging"
	"github.com/hrygo/bookcircle/server/internal/observability"
)

// Resolver builds a tag resolver from the approved taggings of an entity.
func (s *Service) Resolver(ctx context.Context, entityType, entityID string) (*tagging.Resolver, error) {
	views, err := s.ListTaggings(ctx, ListTaggingsRequest{
		EntityType:   entityType,
		EntityID:     entityID,
		ApprovedOnly: true,
	})
	if err != nil {
		return nil, err
	}
	records := make([]tagging.TaggingRecord, 0, len(views))
	for _, v := range views {
		records = append(records, toRecord(v.Tag))
	}
	return tagging.NewResolver(records, s.RenderOptions()), nil
}

// RenderStored splits stored content into text and tag segments, enriching tags
// with the entity's persisted taggings.
func (s *Service) RenderStored(ctx context.Context, entityType, entityID, text string) (segments []tagging.Segment, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpRender, start, err) }()

	resolver, err := s.Resolver(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return resolver.Render(text), nil
}
