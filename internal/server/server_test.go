package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartchainark/clawbridge/internal/bridge"
	"github.com/smartchainark/clawbridge/internal/config"
	"github.com/smartchainark/clawbridge/internal/media"
	"github.com/smartchainark/clawbridge/internal/server"
)

func testConfig(mediaDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:          ":0",
			PublicBaseURL: "http://localhost:8765",
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  5 * time.Second,
			RatePerSecond: 100,
			RateBurst:     100,
		},
		Media: config.MediaConfig{Dir: mediaDir, Prefix: "/media"},
	}
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("audio"), 0o644))

	cfg := testConfig(dir)
	b := bridge.New(bridge.Config{}, nil, nil, nil)
	srv := server.New(context.Background(), cfg, b, media.NewHandler(dir))

	t.Run("healthz", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("media mounted under prefix", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/a.mp3", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio", rec.Body.String())
	})

	t.Run("unknown route is 404", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ws route rejects plain GET", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

		// Not a websocket upgrade request.
		assert.GreaterOrEqual(t, rec.Code, 400)
	})
}
