package store

import (
	"context"
)

// TagSubscription records that a user follows a topic tag.
type TagSubscription struct {
	TagID     int32
	UserID    int32
	CreatedTs int64
}

// FindTagSubscription is the find condition for tag subscriptions.
type FindTagSubscription struct {
	TagID  *int32
	UserID *int32
}

// DeleteTagSubscription is the delete request for a tag subscription.
type DeleteTagSubscription struct {
	TagID  int32
	UserID int32
}

// UpsertTagSubscription creates a subscription, keeping the original one if it exists.
func (s *Store) UpsertTagSubscription(ctx context.Context, upsert *TagSubscription) (*TagSubscription, error) {
	return s.driver.UpsertTagSubscription(ctx, upsert)
}

func (s *Store) ListTagSubscriptions(ctx context.Context, find *FindTagSubscription) ([]*TagSubscription, error) {
	return s.driver.ListTagSubscriptions(ctx, find)
}

func (s *Store) DeleteTagSubscription(ctx context.Context, delete *DeleteTagSubscription) error {
	return s.driver.DeleteTagSubscription(ctx, delete)
}
