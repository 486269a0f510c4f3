package v1

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/bookcircle/internal/profile"
	"github.com/hrygo/bookcircle/plugin/markdown"
	tagservice "github.com/hrygo/bookcircle/server/service/tag"
	"github.com/hrygo/bookcircle/store"
)

type APIV1Service struct {
	Profile         *profile.Profile
	Store           *store.Store
	TagService      *tagservice.Service
	MarkdownService markdown.Service
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, tagService *tagservice.Service) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		Store:      store,
		TagService: tagService,
		MarkdownService: markdown.NewService(
			markdown.WithTagExtension(),
			markdown.WithRenderOptions(tagService.RenderOptions()),
		),
	}
}

// RegisterRoutes registers the tag API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	api := echoServer.Group("/api/v1")
	api.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType, "X-User-ID", "X-Request-ID"},
	}))

	tags := api.Group("/tags")
	tags.GET("/search", s.SearchTags)
	tags.GET("/preview", s.GetTagPreview)
	tags.POST("/taggings", s.CreateTaggings)
	tags.GET("/taggings", s.ListTaggings)
	tags.POST("/render", s.RenderContent)
	tags.POST("/:id/subscription", s.SubscribeTag)
	tags.DELETE("/:id/subscription", s.UnsubscribeTag)

	api.GET("/system/tags/metrics", s.GetTagMetrics)
	api.GET("/system/tags/heatmap", s.GetTagHeatmap)
	api.GET("/system/tags/:id/lifecycle", s.GetTagLifecycle)
}
