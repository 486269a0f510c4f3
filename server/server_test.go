package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bookcircle/internal/profile"
	teststore "github.com/hrygo/bookcircle/store/test"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	st := teststore.NewTestingStore(ctx, t)
	s, err := NewServer(ctx, &profile.Profile{
		Mode:                "dev",
		Addr:                "127.0.0.1",
		TagSearchCacheTTL:   time.Minute,
		TagSearchMaxLimit:   20,
		TagMentionRateLimit: 10,
		TagHashtagRateLimit: 10,
	}, st)
	require.NoError(t, err)
	return s
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)
	t.Cleanup(func() { s.searchCache.Close() })

	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Service ready.", rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tags/taggings",
		strings.NewReader(`{"content":"#Poetry night","entityType":"post","entityId":"p-1","context":"post"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "3")
	rec = httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tags/poetry/rss", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tags/search?q=poe", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"poetry"`)
}

func TestServerStartAndShutdown(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "Service ready.", string(body))

	s.Shutdown(ctx)
}

func TestServerDebugFollowsMode(t *testing.T) {
	ctx := context.Background()
	for mode, debug := range map[string]bool{"prod": false, "dev": true, "demo": true} {
		t.Run(mode, func(t *testing.T) {
			s, err := NewServer(ctx, &profile.Profile{Mode: mode, Addr: "127.0.0.1"}, teststore.NewTestingStore(ctx, t))
			require.NoError(t, err)
			t.Cleanup(func() { s.searchCache.Close() })
			assert.Equal(t, debug, s.echoServer.Debug)
		})
	}
}
