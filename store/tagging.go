package store

import (
	"context"
)

// TaggingStatus is the moderation status of a tagging.
type TaggingStatus string

const (
	// TaggingApproved taggings are visible.
	TaggingApproved TaggingStatus = "APPROVED"
	// TaggingPending taggings wait for approval.
	TaggingPending TaggingStatus = "PENDING"
)

// Tagging links a tag to a piece of content.
type Tagging struct {
	ID            int32
	UID           string
	TagID         int32
	EntityType    string
	EntityID      string
	Context       string
	TaggedBy      int32
	PositionStart int32
	PositionEnd   int32
	Status        TaggingStatus
	CreatedTs     int64
}

// FindTagging is the find condition for taggings. Results are ordered newest first.
type FindTagging struct {
	ID         *int32
	TagID      *int32
	EntityType *string
	EntityID   *string
	Context    *string
	Status     *TaggingStatus

	Limit *int
}

// DeleteTagging is the delete request for a tagging.
type DeleteTagging struct {
	ID int32
}

// CreateTaggings inserts taggings in a single transaction.
func (s *Store) CreateTaggings(ctx context.Context, creates []*Tagging) ([]*Tagging, error) {
	if len(creates) == 0 {
		return []*Tagging{}, nil
	}
	return s.driver.CreateTaggings(ctx, creates)
}

func (s *Store) ListTaggings(ctx context.Context, find *FindTagging) ([]*Tagging, error) {
	return s.driver.ListTaggings(ctx, find)
}

func (s *Store) DeleteTagging(ctx context.Context, delete *DeleteTagging) error {
	return s.driver.DeleteTagging(ctx, delete)
}
