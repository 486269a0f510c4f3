// Package rss serves RSS feeds of recently tagged content per topic.
package rss

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/bookcircle/internal/profile"
	"github.com/hrygo/bookcircle/plugin/tagging"
	apierrors "github.com/hrygo/bookcircle/server/internal/errors"
	tagservice "github.com/hrygo/bookcircle/server/service/tag"
)

const maxRSSItemCount = 50

type RSSService struct {
	Profile    *profile.Profile
	TagService *tagservice.Service
}

func NewRSSService(profile *profile.Profile, tagService *tagservice.Service) *RSSService {
	return &RSSService{
		Profile:    profile,
		TagService: tagService,
	}
}

func (s *RSSService) RegisterRoutes(g *echo.Group) {
	g.GET("/tags/:slug/rss", s.GetTopicRSS)
}

// GetTopicRSS returns the most recent approved taggings of a topic.
func (s *RSSService) GetTopicRSS(c echo.Context) error {
	ctx := c.Request().Context()
	slug := strings.ToLower(c.Param("slug"))

	topic, err := s.TagService.GetTagBySlug(ctx, slug, tagging.KindTopic)
	if err != nil {
		if apierrors.IsCode(err, apierrors.ErrCodeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Topic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to find topic").SetInternal(err)
	}

	views, err := s.TagService.ListTaggings(ctx, tagservice.ListTaggingsRequest{
		TagID:        &topic.ID,
		ApprovedOnly: true,
		Limit:        maxRSSItemCount,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list taggings").SetInternal(err)
	}

	baseURL := s.baseURL(c)
	feed := &feeds.Feed{
		Title:       "#" + topic.Name,
		Link:        &feeds.Link{Href: baseURL + tagging.KindTopic.Href(topic.Slug, "", "")},
		Description: topic.Metadata.Description,
		Created:     time.Unix(topic.CreatedTs, 0),
	}
	if feed.Description == "" {
		feed.Description = fmt.Sprintf("Recently tagged with #%s", topic.Name)
	}

	feed.Items = make([]*feeds.Item, 0, len(views))
	for _, v := range views {
		t := v.Tagging
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          t.UID,
			Title:       fmt.Sprintf("%s %s tagged #%s", t.EntityType, t.EntityID, topic.Name),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/%s/%s", baseURL, t.EntityType, t.EntityID)},
			Description: fmt.Sprintf("Tagged in a %s", t.Context),
			Created:     time.Unix(t.CreatedTs, 0),
		})
	}
	if len(feed.Items) > 0 {
		feed.Updated = feed.Items[0].Created
	}

	rss, err := feed.ToRss()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate rss").SetInternal(err)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.String(http.StatusOK, rss)
}

func (s *RSSService) baseURL(c echo.Context) string {
	if s.Profile != nil && s.Profile.InstanceURL != "" {
		return strings.TrimSuffix(s.Profile.InstanceURL, "/")
	}
	return c.Scheme() + "://" + c.Request().Host
}
