package tag

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/bookcircle/plugin/tagging"
	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	"github.com/hrygo/bookcircle/server/internal/observability"
	"github.com/hrygo/bookcircle/store"
)

// GetTagBySlug returns the live tag with the slug and kind, or a NotFound error.
func (s *Service) GetTagBySlug(ctx context.Context, slug string, kind tagging.TagKind) (*store.Tag, error) {
	kindStr := string(kind)
	normal := store.Normal
	t, err := s.store.GetTag(ctx, &store.FindTag{Slug: &slug, Type: &kindStr, RowStatus: &normal})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tag")
	}
	if t == nil {
		return nil, apierrors.NotFound("tag %s%s not found", string(kind.Trigger()), slug)
	}
	return t, nil
}

// Preview returns hover card data for a tag. userID may be zero for anonymous callers.
func (s *Service) Preview(ctx context.Context, slug string, kind tagging.TagKind, userID int32) (preview *TagPreview, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpPreview, start, err) }()

	if _, err := tagging.ParseTagKind(string(kind)); err != nil {
		return nil, apierrors.InvalidArgument("invalid tag type %q", kind)
	}
	t, err := s.GetTagBySlug(ctx, slug, kind)
	if err != nil {
		return nil, err
	}

	subscriptions, err := s.store.ListTagSubscriptions(ctx, &store.FindTagSubscription{TagID: &t.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tag subscriptions")
	}
	subscribed := false
	if userID != 0 {
		for _, sub := range subscriptions {
			if sub.UserID == userID {
				subscribed = true
				break
			}
		}
	}

	return &TagPreview{
		Tag:             Candidate(t),
		Description:     t.Metadata.Description,
		Color:           t.Metadata.Color,
		UsageCount:      t.UsageCount,
		SubscriberCount: len(subscriptions),
		Subscribed:      subscribed,
		Href:            kind.Href(t.Slug, t.Metadata.EntityID, t.Metadata.EntityType),
	}, nil
}

// Subscribe subscribes the user to a topic tag. Subscribing twice is a no-op.
func (s *Service) Subscribe(ctx context.Context, tagID, userID int32) (sub *store.TagSubscription, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpSubscribe, start, err) }()

	if _, err := s.getTopic(ctx, tagID, userID); err != nil {
		return nil, err
	}
	sub, err = s.store.UpsertTagSubscription(ctx, &store.TagSubscription{TagID: tagID, UserID: userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to tag")
	}
	return sub, nil
}

// Unsubscribe removes the user's subscription to a topic tag.
func (s *Service) Unsubscribe(ctx context.Context, tagID, userID int32) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(observability.OpSubscribe, start, err) }()

	if _, err := s.getTopic(ctx, tagID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteTagSubscription(ctx, &store.DeleteTagSubscription{TagID: tagID, UserID: userID}); err != nil {
		return errors.Wrap(err, "failed to unsubscribe from tag")
	}
	return nil
}

func (s *Service) getTopic(ctx context.Context, tagID, userID int32) (*store.Tag, error) {
	if userID == 0 {
		return nil, apierrors.Unauthenticated("caller identity is required")
	}
	t, err := s.store.GetTag(ctx, &store.FindTag{ID: &tagID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tag")
	}
	if t == nil {
		return nil, apierrors.NotFound("tag %d not found", tagID)
	}
	if tagging.TagKind(t.Type) != tagging.KindTopic {
		return nil, apierrors.InvalidArgument("only topic tags can be subscribed to")
	}
	return t, nil
}
