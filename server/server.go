package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/bookcircle/internal/profile"
	"github.com/hrygo/bookcircle/plugin/cache"
	appmiddleware "github.com/hrygo/bookcircle/server/middleware"
	"github.com/hrygo/bookcircle/server/internal/observability"
	apiv1 "github.com/hrygo/bookcircle/server/router/api/v1"
	"github.com/hrygo/bookcircle/server/router/rss"
	tagservice "github.com/hrygo/bookcircle/server/service/tag"
	"github.com/hrygo/bookcircle/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer  *echo.Echo
	searchCache *cache.Service
	listener    net.Listener
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Store:   store,
		Profile: profile,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(appmiddleware.RequestContext(slog.Default()))
	s.echoServer = echoServer

	cacheConfig := cache.DefaultServiceConfig()
	cacheConfig.DefaultTTL = profile.TagSearchCacheTTL
	s.searchCache = cache.NewService(cacheConfig)

	tagService, err := tagservice.NewService(store, s.searchCache, observability.NewMetrics(1000), tagservice.ConfigFromProfile(profile))
	if err != nil {
		s.searchCache.Close()
		return nil, errors.Wrap(err, "failed to create tag service")
	}

	// Healthz endpoint.
	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	rss.NewRSSService(profile, tagService).RegisterRoutes(echoServer.Group(""))
	apiv1.NewAPIV1Service(profile, store, tagService).RegisterRoutes(echoServer)

	slog.DebugContext(ctx, "server routes registered", slog.Int("routes", len(echoServer.Routes())))
	return s, nil
}

// Start listens on the profile address and serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = listener

	go func() {
		if err := s.echoServer.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", slog.String("error", err.Error()))
		}
	}()
	slog.InfoContext(ctx, "server started", slog.String("address", listener.Addr().String()), slog.String("mode", s.Profile.Mode))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	s.searchCache.Close()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("bookcircle stopped properly")
}

// Addr returns the listening address once the server has started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
