package tag

import (
	"github.com/hrygo/bookcircle/plugin/tagging"
	"github.com/hrygo/bookcircle/store"
)

// Contexts a tagging can be created in.
const (
	ContextPost     = "post"
	ContextComment  = "comment"
	ContextProfile  = "profile"
	ContextMessage  = "message"
	ContextPhoto    = "photo"
	ContextActivity = "activity"
)

var validContexts = map[string]bool{
	ContextPost:     true,
	ContextComment:  true,
	ContextProfile:  true,
	ContextMessage:  true,
	ContextPhoto:    true,
	ContextActivity: true,
}

// SearchRequest is a tag search.
type SearchRequest struct {
	Query string
	Kinds []tagging.TagKind
	// Limit defaults to DefaultSearchLimit and is capped by Config.MaxLimit.
	Limit int
}

// FindOrCreateTag describes a tag to look up, creating it when missing.
type FindOrCreateTag struct {
	Name      string
	Kind      tagging.TagKind
	Metadata  store.TagMetadata
	CreatedBy int32
}

// TagInput is an explicit tag attached to a CreateTaggingsRequest.
type TagInput struct {
	Name       string          `json:"name"`
	Kind       tagging.TagKind `json:"type"`
	EntityID   string          `json:"entityId,omitempty"`
	EntityType string          `json:"entityType,omitempty"`
	Position   *tagging.Span   `json:"position,omitempty"`
}

// CreateTaggingsRequest tags a piece of content. Tags come from Content and Tags.
type CreateTaggingsRequest struct {
	Content    string     `json:"content,omitempty"`
	Tags       []TagInput `json:"tags,omitempty"`
	EntityType string     `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Context    string     `json:"context"`
	UserID     int32      `json:"-"`
}

// CreateTaggingsResult reports what CreateTaggings stored.
type CreateTaggingsResult struct {
	Created  int
	Pending  int
	Skipped  int
	Taggings []*store.Tagging
}

// ListTaggingsRequest filters taggings. Either the entity or TagID must be set.
type ListTaggingsRequest struct {
	EntityType string
	EntityID   string
	Context    string
	TagID      *int32
	// ApprovedOnly hides pending taggings.
	ApprovedOnly bool
	Limit        int
}

// TaggingView is a tagging joined with its tag.
type TaggingView struct {
	Tagging *store.Tagging
	Tag     *store.Tag
}

// TagPreview is the hover card data for a tag.
type TagPreview struct {
	Tag             tagging.TagCandidate `json:"tag"`
	Description     string               `json:"description,omitempty"`
	Color           string               `json:"color,omitempty"`
	UsageCount      int32                `json:"usageCount"`
	SubscriberCount int                  `json:"subscriberCount"`
	Subscribed      bool                 `json:"subscribed"`
	Href            string               `json:"href,omitempty"`
}
