package infrastructure

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

	"github.com/yourusername/vid-extract-go/internal/domain"
)

func TestClassifyExtractorOutput(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		category domain.ErrorCategory
	}{
		{"rate limit 429", "ERROR: HTTP Error 429: Too Many Requests", domain.CategoryRateLimited},
		{"rate limit text", "ERROR: rate limit exceeded, try later", domain.CategoryRateLimited},
		{"private video", "ERROR: Private video. Sign in if you've been granted access", domain.CategoryContentUnavailable},
		{"removed", "ERROR: This video has been removed by the uploader", domain.CategoryContentUnavailable},
		{"geo blocked", "ERROR: This video is not available in your country", domain.CategoryContentUnavailable},
		{"http 404", "ERROR: Unable to download webpage: HTTP Error 404", domain.CategoryContentUnavailable},
		{"unsupported url", "ERROR: Unsupported URL: https://example.com/page", domain.CategoryValidation},
		{"no space", "ERROR: unable to write data: [Errno 28] No space left on device", domain.CategorySystem},
		{"generic network", "ERROR: Unable to download webpage: <urlopen error timed out>", domain.CategoryNetwork},
		{"empty stderr", "", domain.CategoryNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyExtractorOutput("get_video_info", "https://example.com/v", tt.stderr, assert.AnError)
			assert.Equal(t, tt.category, domain.CategoryOf(err))
		})
	}
}

func TestFirstLine(t *testing.T) {
	stderr := "WARNING: some deprecation notice\nERROR: Private video\nmore detail"
	assert.Equal(t, "ERROR: Private video", firstLine(stderr))

	assert.Equal(t, "just one line", firstLine("just one line"))
	assert.Equal(t, "extractor failed", firstLine(""))
	assert.Equal(t, "first", firstLine("first\nsecond"))
}

func TestParseSize(t *testing.T) {
	assert.Equal(t, int64(1024), parseSize("1", "KiB"))
	assert.Equal(t, int64(10*1<<20), parseSize("10", "MiB"))
	assert.Equal(t, int64(float64(1.5)*float64(1<<30)), parseSize("1.5", "GiB"))
	assert.Equal(t, int64(0), parseSize("junk", "MiB"))
}

func TestProgressLinePattern(t *testing.T) {
	m := progressLine.FindStringSubmatch("[download]  42.3% of ~ 12.5MiB at 1.2MiB/s ETA 00:05")
	require.NotNil(t, m)
	assert.Equal(t, "42.3", m[1])
	assert.Equal(t, "12.5", m[2])
	assert.Equal(t, "MiB", m[3])

	m = progressLine.FindStringSubmatch("[download] 100%")
	require.NotNil(t, m)
	assert.Equal(t, "100", m[1])

	assert.Nil(t, progressLine.FindStringSubmatch("[info] Writing video metadata"))
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Duration(0), parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "not-a-number")
	assert.Equal(t, time.Duration(0), parseRetryAfter(resp))
}

func newHTTPExtractor(client *http.Client) *YtDlpExtractor {
	return NewYtDlpExtractor(domain.PlatformX, domain.PlatformConfig{}, client, nil)
}

func TestHTTPDownload_Success(t *testing.T) {
	body := []byte("binary media payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	e := newHTTPExtractor(srv.Client())
	dest := filepath.Join(t.TempDir(), "out.mp4")

	var sawTerminal bool
	n, err := e.Download(context.Background(), "https://x.com/u/status/1",
		domain.Format{ID: "hd", SourceURL: srv.URL}, dest,
		func(done, total int64, percent float64) {
			if percent >= 100 {
				sawTerminal = true
			}
		})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	assert.True(t, sawTerminal)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, content)
}

func TestHTTPDownload_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := newHTTPExtractor(srv.Client())
	_, err := e.Download(context.Background(), "https://x.com/u/status/1",
		domain.Format{SourceURL: srv.URL}, filepath.Join(t.TempDir(), "out.mp4"), nil)
	require.Error(t, err)
	assert.Equal(t, domain.CategoryRateLimited, domain.CategoryOf(err))
	assert.Equal(t, 30*time.Second, domain.RetryAfterOf(err))
}

func TestHTTPDownload_ContentGone(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		e := newHTTPExtractor(srv.Client())
		_, err := e.Download(context.Background(), "https://x.com/u/status/1",
			domain.Format{SourceURL: srv.URL}, filepath.Join(t.TempDir(), "out.mp4"), nil)
		require.Error(t, err)
		assert.Equal(t, domain.CategoryContentUnavailable, domain.CategoryOf(err), "status %d", status)
		srv.Close()
	}
}

func TestHTTPDownload_ServerErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := newHTTPExtractor(srv.Client())
	_, err := e.Download(context.Background(), "https://x.com/u/status/1",
		domain.Format{SourceURL: srv.URL}, filepath.Join(t.TempDir(), "out.mp4"), nil)
	require.Error(t, err)
	assert.Equal(t, domain.CategoryNetwork, domain.CategoryOf(err))
}

func TestNewYtDlpExtractor_Defaults(t *testing.T) {
	e := NewYtDlpExtractor(domain.PlatformYouTube, domain.PlatformConfig{}, nil, nil)
	assert.Equal(t, "yt-dlp", e.binary)
	assert.NotNil(t, e.client)
}
