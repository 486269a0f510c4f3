package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/bookcircle/server/internal/observability"
)

const (
	// HeaderRequestID carries a caller-supplied request id.
	HeaderRequestID = "X-Request-ID"
	// HeaderUserID carries the caller identity set by the upstream proxy.
	HeaderUserID = "X-User-ID"
)

// RequestContext attaches an observability.RequestContext to every request
// and logs the request once it completes.
func RequestContext(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqCtx := observability.NewRequestContextWithID(logger, req.Header.Get(HeaderRequestID), c.Path(), UserID(c))
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))
			c.Response().Header().Set(HeaderRequestID, reqCtx.RequestID)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			reqCtx.Debug("request completed",
				slog.String("method", req.Method),
				slog.Int("status", c.Response().Status),
				slog.Int64(observability.LogFieldDuration, time.Since(reqCtx.StartTime).Milliseconds()),
			)
			return nil
		}
	}
}

// UserID returns the trusted caller id, or 0 when absent or malformed.
func UserID(c echo.Context) int32 {
	raw := c.Request().Header.Get(HeaderUserID)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0
	}
	return int32(id)
}
