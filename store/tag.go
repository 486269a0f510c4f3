package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// TagMetadata is the JSON payload stored with a tag.
type TagMetadata struct {
	EntityID    string `json:"entity_id,omitempty"`
	EntityType  string `json:"entity_type,omitempty"`
	Permalink   string `json:"permalink,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Sublabel    string `json:"sublabel,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// IsEmpty reports whether no metadata field is set.
func (m TagMetadata) IsEmpty() bool {
	return m == TagMetadata{}
}

// Marshal encodes the metadata as a JSON string.
func (m TagMetadata) Marshal() (string, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal tag metadata")
	}
	return string(bytes), nil
}

// UnmarshalTagMetadata decodes a metadata column. Empty input yields empty metadata.
func UnmarshalTagMetadata(raw string) (TagMetadata, error) {
	var m TagMetadata
	if raw == "" || raw == "null" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, errors.Wrap(err, "failed to unmarshal tag metadata")
	}
	return m, nil
}

// Tag is a named reference that content can be tagged with.
type Tag struct {
	ID         int32
	UID        string
	Name       string
	Slug       string
	Type       string
	Metadata   TagMetadata
	UsageCount int32
	RowStatus  RowStatus
	CreatedBy  int32
	CreatedTs  int64
	UpdatedTs  int64
	// DeletedTs is zero for live tags.
	DeletedTs int64
}

// FindTag is the find condition for tags. Deleted tags are never returned.
type FindTag struct {
	ID    *int32
	IDs   []int32
	UID   *string
	Slug  *string
	Type  *string
	Types []string
	// EntityID matches metadata.entity_id.
	EntityID *string
	// Query matches tags whose lowercased name or slug contains the value.
	Query     *string
	RowStatus *RowStatus

	Limit *int
}

// UpdateTag is the update request for a tag.
type UpdateTag struct {
	ID        int32
	Name      *string
	Slug      *string
	Metadata  *TagMetadata
	RowStatus *RowStatus
	UpdatedTs *int64
}

// DeleteTag soft-deletes a tag.
type DeleteTag struct {
	ID int32
}

func tagCacheKey(id int32) string {
	return fmt.Sprintf("tag:%d", id)
}

// CreateTag creates a new tag.
func (s *Store) CreateTag(ctx context.Context, create *Tag) (*Tag, error) {
	tag, err := s.driver.CreateTag(ctx, create)
	if err != nil {
		return nil, err
	}
	s.tagCache.Set(ctx, tagCacheKey(tag.ID), tag)
	return tag, nil
}

// ListTags lists tags with filter.
func (s *Store) ListTags(ctx context.Context, find *FindTag) ([]*Tag, error) {
	list, err := s.driver.ListTags(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, tag := range list {
		s.tagCache.Set(ctx, tagCacheKey(tag.ID), tag)
	}
	return list, nil
}

// GetTag returns the first tag matching find, or nil when none does.
func (s *Store) GetTag(ctx context.Context, find *FindTag) (*Tag, error) {
	if find.ID != nil && find.RowStatus == nil {
		if cached, ok := s.tagCache.Get(ctx, tagCacheKey(*find.ID)); ok {
			return cached.(*Tag), nil
		}
	}

	limit := 1
	find.Limit = &limit
	list, err := s.ListTags(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateTag updates a tag and refreshes the cache.
func (s *Store) UpdateTag(ctx context.Context, update *UpdateTag) (*Tag, error) {
	tag, err := s.driver.UpdateTag(ctx, update)
	if err != nil {
		return nil, err
	}
	s.tagCache.Set(ctx, tagCacheKey(tag.ID), tag)
	return tag, nil
}

// IncrementTagUsage adds delta to the usage count of a tag.
func (s *Store) IncrementTagUsage(ctx context.Context, id int32, delta int32) error {
	if err := s.driver.IncrementTagUsage(ctx, id, delta); err != nil {
		return err
	}
	s.tagCache.Delete(ctx, tagCacheKey(id))
	return nil
}

// DeleteTag soft-deletes a tag.
func (s *Store) DeleteTag(ctx context.Context, delete *DeleteTag) error {
	if err := s.driver.DeleteTag(ctx, delete); err != nil {
		return err
	}
	s.tagCache.Delete(ctx, tagCacheKey(delete.ID))
	return nil
}

// TagAlias is an alternative name that resolves to a tag.
type TagAlias struct {
	ID        int32
	TagID     int32
	Alias     string
	AliasSlug string
	CreatedTs int64
}

// FindTagAlias is the find condition for tag aliases.
type FindTagAlias struct {
	TagID *int32
	// Query matches aliases whose lowercased alias or alias slug contains the value.
	Query *string
	Limit *int
}

// DeleteTagAlias is the delete request for a tag alias.
type DeleteTagAlias struct {
	ID int32
}

func (s *Store) CreateTagAlias(ctx context.Context, create *TagAlias) (*TagAlias, error) {
	return s.driver.CreateTagAlias(ctx, create)
}

func (s *Store) ListTagAliases(ctx context.Context, find *FindTagAlias) ([]*TagAlias, error) {
	return s.driver.ListTagAliases(ctx, find)
}

func (s *Store) DeleteTagAlias(ctx context.Context, delete *DeleteTagAlias) error {
	return s.driver.DeleteTagAlias(ctx, delete)
}
