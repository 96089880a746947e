//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/api"
	"github.com/yourusername/vid-extract-go/internal/app"
	"github.com/yourusername/vid-extract-go/internal/domain"
)

// MockExtractor returns fixture metadata and writes fixture bytes on download
type MockExtractor struct {
	platform domain.Platform
}

func (m *MockExtractor) FetchMetadata(ctx context.Context, url string) (*domain.RawVideoInfo, error) {
	return &domain.RawVideoInfo{
		ID:         "fixture1",
		Title:      "Fixture video",
		Uploader:   "Creator",
		UploaderID: "creator",
		Duration:   12,
		Timestamp:  1736942400,
		Formats: []domain.RawFormat{
			{FormatID: "hd", Ext: "mp4", Height: 720, Width: 1280},
			{FormatID: "sd", Ext: "mp4", Height: 360, Width: 640},
		},
	}, nil
}

func (m *MockExtractor) Download(ctx context.Context, url string, format domain.Format, destPath string, progress domain.ProgressFunc) (int64, error) {
	body := []byte("fixture media")
	if err := os.WriteFile(destPath, body, 0644); err != nil {
		return 0, err
	}
	if progress != nil {
		progress(int64(len(body)), int64(len(body)), 100)
	}
	return int64(len(body)), nil
}

func setupTestServer(t *testing.T) (*httptest.Server, *app.FrameworkContext) {
	t.Helper()

	config := domain.DefaultConfig()
	base := t.TempDir()
	config.Download.BaseDir = base
	config.Download.TempDir = filepath.Join(base, "incoming")
	config.Download.CompletedDir = filepath.Join(base, "completed")
	config.Recovery.BaseDelay = time.Millisecond
	config.Recovery.MaxDelay = 10 * time.Millisecond

	framework, err := app.NewFrameworkContext(config, nil,
		func(platform domain.Platform, cfg domain.PlatformConfig, client *http.Client) domain.Extractor {
			return &MockExtractor{platform: platform}
		}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { framework.Close() })

	router := api.SetupRouter(framework, zap.NewNop())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, framework
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	return resp
}

func TestAPI_Health(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Resolve(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/resolve", map[string]string{
		"url": "https://x.com/user/status/123",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "x", result["platform"])
}

func TestAPI_ResolveUnsupportedURL(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/resolve", map[string]string{
		"url": "https://vimeo.com/12345",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_VideoInfo(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/videos/info", map[string]string{
		"url": "https://www.youtube.com/watch?v=fixture1",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "fixture1", info["id"])
	assert.Equal(t, "Fixture video", info["title"])
	assert.Equal(t, "youtube", info["platform"])
}

func TestAPI_AddDownload(t *testing.T) {
	server, framework := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/downloads", map[string]string{
		"url":     "https://x.com/user/status/123",
		"quality": "best",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var dl map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dl))
	assert.NotEmpty(t, dl["id"])
	assert.Equal(t, "x", dl["platform"])

	framework.Tracker.Wait()
	final := framework.Tracker.Get(dl["id"].(string))
	require.NotNil(t, final)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	assert.FileExists(t, final.Result.FilePath)
}

func TestAPI_GetAndListDownloads(t *testing.T) {
	server, framework := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/downloads", map[string]string{
		"url": "https://www.tiktok.com/@user/video/1",
	})
	var dl map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dl))
	resp.Body.Close()
	framework.Tracker.Wait()

	resp2, err := http.Get(server.URL + "/api/v1/downloads/" + dl["id"].(string))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(server.URL + "/api/v1/downloads")
	require.NoError(t, err)
	defer resp3.Body.Close()
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestAPI_DownloadNotFound(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/downloads/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CacheStatsAndInvalidate(t *testing.T) {
	server, _ := setupTestServer(t)

	// Populate the cache
	resp := postJSON(t, server.URL+"/api/v1/videos/info", map[string]string{
		"url": "https://www.youtube.com/watch?v=fixture1",
	})
	resp.Body.Close()

	resp2, err := http.Get(server.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&stats))
	assert.GreaterOrEqual(t, stats["size"].(float64), float64(1))

	resp3 := postJSON(t, server.URL+"/api/v1/cache/invalidate", map[string]string{
		"url": "https://www.youtube.com/watch?v=fixture1",
	})
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
}

func TestAPI_InfoValidationError(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/videos/info", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
