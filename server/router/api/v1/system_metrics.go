package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/bookcircle/server/internal/observability"
)

// TagMetricsResponse represents the in-process tag metrics.
type TagMetricsResponse struct {
	TotalRequests int64                                        `json:"total_requests"`
	SuccessRate   float64                                      `json:"success_rate"`
	P50LatencyMs  int64                                        `json:"p50_latency_ms"`
	P95LatencyMs  int64                                        `json:"p95_latency_ms"`
	ErrorCount    int64                                        `json:"error_count"`
	CacheHitRate  float64                                      `json:"cache_hit_rate"`
	Operations    map[string]*observability.OperationSnapshot `json:"operations"`
}

// GetTagMetrics returns the tag service metrics since start.
// GET /api/v1/system/tags/metrics
func (s *APIV1Service) GetTagMetrics(c echo.Context) error {
	snap := s.TagService.Metrics().Snapshot()
	return c.JSON(http.StatusOK, TagMetricsResponse{
		TotalRequests: snap.RequestTotal,
		SuccessRate:   snap.SuccessRate(),
		P50LatencyMs:  snap.P50Ms,
		P95LatencyMs:  snap.P95Ms,
		ErrorCount:    snap.RequestFailed,
		CacheHitRate:  snap.CacheHitRate(),
		Operations:    snap.Operations,
	})
}

// GetTagHeatmap returns approved tag usage grouped by entity type and tag type.
// GET /api/v1/system/tags/heatmap
func (s *APIV1Service) GetTagHeatmap(c echo.Context) error {
	cells, err := s.TagService.Heatmap(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"cells": cells})
}

// GetTagLifecycle returns the usage history of one tag.
// GET /api/v1/system/tags/:id/lifecycle
func (s *APIV1Service) GetTagLifecycle(c echo.Context) error {
	tagID, err := parseTagID(c)
	if err != nil {
		return writeError(c, err)
	}
	lifecycle, err := s.TagService.Lifecycle(c.Request().Context(), tagID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, lifecycle)
}
