package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/bookcircle/plugin/tagging"
	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	"github.com/hrygo/bookcircle/server/middleware"
	tagservice "github.com/hrygo/bookcircle/server/service/tag"
	"github.com/hrygo/bookcircle/store"
)

// SearchTagsResponse is the body of GET /api/v1/tags/search.
type SearchTagsResponse struct {
	Results []tagging.TagCandidate `json:"results"`
}

// SearchTags searches tags.
// GET /api/v1/tags/search?q=...&types=user,entity&limit=10
func (s *APIV1Service) SearchTags(c echo.Context) error {
	kinds, err := parseKinds(c.QueryParam("types"))
	if err != nil {
		return writeError(c, err)
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return writeError(c, apierrors.InvalidArgument("invalid limit %q", raw))
		}
	}

	results, err := s.TagService.Search(c.Request().Context(), tagservice.SearchRequest{
		Query: c.QueryParam("q"),
		Kinds: kinds,
		Limit: limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SearchTagsResponse{Results: results})
}

func parseKinds(raw string) ([]tagging.TagKind, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var kinds []tagging.TagKind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, err := tagging.ParseTagKind(part)
		if err != nil {
			return nil, apierrors.InvalidArgument("invalid tag type %q", part)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// GetTagPreview returns hover card data.
// GET /api/v1/tags/preview?slug=fantasy&type=topic
func (s *APIV1Service) GetTagPreview(c echo.Context) error {
	slug := strings.ToLower(strings.TrimSpace(c.QueryParam("slug")))
	if slug == "" {
		return writeError(c, apierrors.InvalidArgument("slug is required"))
	}
	kind := tagging.KindTopic
	if raw := c.QueryParam("type"); raw != "" {
		kind = tagging.TagKind(raw)
	}

	preview, err := s.TagService.Preview(c.Request().Context(), slug, kind, middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"preview": preview})
}

// SubscribeTag subscribes the caller to a topic.
// POST /api/v1/tags/:id/subscription
func (s *APIV1Service) SubscribeTag(c echo.Context) error {
	tagID, err := parseTagID(c)
	if err != nil {
		return writeError(c, err)
	}
	if _, err := s.TagService.Subscribe(c.Request().Context(), tagID, middleware.UserID(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"subscribed": true})
}

// UnsubscribeTag removes the caller's subscription.
// DELETE /api/v1/tags/:id/subscription
func (s *APIV1Service) UnsubscribeTag(c echo.Context) error {
	tagID, err := parseTagID(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.TagService.Unsubscribe(c.Request().Context(), tagID, middleware.UserID(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"subscribed": false})
}

func parseTagID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, apierrors.InvalidArgument("invalid tag id %q", c.Param("id"))
	}
	return int32(id), nil
}

// CreateTaggingsResponse is the body of POST /api/v1/tags/taggings.
type CreateTaggingsResponse struct {
	Success         bool   `json:"success"`
	TaggingsCreated int    `json:"taggingsCreated"`
	PendingTaggings int    `json:"pendingTaggings"`
	Message         string `json:"message"`
}

// CreateTaggings tags content with the tags parsed from it and the explicit tags given.
// POST /api/v1/tags/taggings
func (s *APIV1Service) CreateTaggings(c echo.Context) error {
	var req tagservice.CreateTaggingsRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apierrors.InvalidArgument("invalid request body"))
	}
	req.UserID = middleware.UserID(c)

	result, err := s.TagService.CreateTaggings(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	message := strconv.Itoa(result.Created) + " taggings created"
	if result.Created == 0 && result.Pending == 0 && len(req.Tags) == 0 && len(tagging.Scan(req.Content)) == 0 {
		message = "No tags to create"
	} else if result.Pending > 0 {
		message += ", " + strconv.Itoa(result.Pending) + " pending approval"
	}
	return c.JSON(http.StatusOK, CreateTaggingsResponse{
		Success:         true,
		TaggingsCreated: result.Created,
		PendingTaggings: result.Pending,
		Message:         message,
	})
}

// TaggingResponse is one tagging in GET /api/v1/tags/taggings.
type TaggingResponse struct {
	ID            int32                `json:"id"`
	TagID         int32                `json:"tagId"`
	Context       string               `json:"context"`
	PositionStart int32                `json:"positionStart"`
	PositionEnd   int32                `json:"positionEnd"`
	Status        store.TaggingStatus  `json:"status"`
	CreatedTs     int64                `json:"createdTs"`
	Tag           tagging.TagCandidate `json:"tag"`
	UsageCount    int32                `json:"usageCount"`
}

// ListTaggings lists the taggings of an entity, newest first.
// GET /api/v1/tags/taggings?entityType=post&entityId=...&context=post
func (s *APIV1Service) ListTaggings(c echo.Context) error {
	views, err := s.TagService.ListTaggings(c.Request().Context(), tagservice.ListTaggingsRequest{
		EntityType: c.QueryParam("entityType"),
		EntityID:   c.QueryParam("entityId"),
		Context:    c.QueryParam("context"),
	})
	if err != nil {
		return writeError(c, err)
	}

	taggings := make([]TaggingResponse, 0, len(views))
	for _, v := range views {
		taggings = append(taggings, TaggingResponse{
			ID:            v.Tagging.ID,
			TagID:         v.Tagging.TagID,
			Context:       v.Tagging.Context,
			PositionStart: v.Tagging.PositionStart,
			PositionEnd:   v.Tagging.PositionEnd,
			Status:        v.Tagging.Status,
			CreatedTs:     v.Tagging.CreatedTs,
			Tag:           tagservice.Candidate(v.Tag),
			UsageCount:    v.Tag.UsageCount,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"taggings": taggings})
}

// RenderContentRequest is the body of POST /api/v1/tags/render.
type RenderContentRequest struct {
	Text       string `json:"text"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	// Format is "segments" (default) or "html".
	Format string `json:"format,omitempty"`
}

// RenderContent splits stored content into segments, or renders it as HTML,
// resolving tags against the entity's persisted taggings.
// POST /api/v1/tags/render
func (s *APIV1Service) RenderContent(c echo.Context) error {
	var req RenderContentRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apierrors.InvalidArgument("invalid request body"))
	}
	ctx := c.Request().Context()

	var resolver *tagging.Resolver
	if req.EntityType != "" || req.EntityID != "" {
		var err error
		if resolver, err = s.TagService.Resolver(ctx, req.EntityType, req.EntityID); err != nil {
			return writeError(c, err)
		}
	} else {
		resolver = tagging.NewResolver(nil, s.TagService.RenderOptions())
	}

	switch req.Format {
	case "", "segments":
		segments := resolver.Render(req.Text)
		if segments == nil {
			segments = []tagging.Segment{}
		}
		return c.JSON(http.StatusOK, map[string]any{"segments": segments})
	case "html":
		html, err := s.MarkdownService.RenderHTML([]byte(req.Text), resolver)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"html": html})
	default:
		return writeError(c, apierrors.InvalidArgument("invalid format %q", req.Format))
	}
}
