package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// YtDlpExtractor adapts the yt-dlp binary as the external extraction
// routine for a platform. Metadata comes from --dump-json; downloads go
// either directly over the pooled HTTP client (when the format carries a
// source URL) or through the binary. Retries and rate limiting are the
// framework's responsibility, not this adapter's.
type YtDlpExtractor struct {
	platform   domain.Platform
	binary     string
	cookieFile string
	extraArgs  []string
	client     *http.Client
	logger     *zap.Logger
}

// NewYtDlpExtractor creates an extractor for one platform
func NewYtDlpExtractor(platform domain.Platform, cfg domain.PlatformConfig, client *http.Client, logger *zap.Logger) *YtDlpExtractor {
	binary := cfg.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YtDlpExtractor{
		platform:   platform,
		binary:     binary,
		cookieFile: cfg.CookieFile,
		extraArgs:  cfg.ExtraArgs,
		client:     client,
		logger:     logger.With(zap.String("platform", string(platform))),
	}
}

// FetchMetadata runs the binary in dump-json mode and parses its payload
func (e *YtDlpExtractor) FetchMetadata(ctx context.Context, url string) (*domain.RawVideoInfo, error) {
	args := []string{"--dump-json", "--no-download", "--no-warnings", "--no-playlist"}
	args = e.appendCommonArgs(args)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("Fetching metadata", zap.String("url", url))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyExtractorOutput("get_video_info", url, stderr.String(), err)
	}

	var raw domain.RawVideoInfo
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, domain.NewClassifiedError("get_video_info", url, domain.CategoryNetwork,
			fmt.Errorf("failed to parse extractor output: %w", err))
	}
	return &raw, nil
}

// Download transfers media to destPath. A short-lived source URL on the
// format goes straight through the pooled HTTP client; otherwise the
// binary fetches the format by ID.
func (e *YtDlpExtractor) Download(ctx context.Context, url string, format domain.Format, destPath string, progress domain.ProgressFunc) (int64, error) {
	if format.SourceURL != "" {
		return e.httpDownload(ctx, url, format.SourceURL, destPath, progress)
	}
	return e.binaryDownload(ctx, url, format.ID, destPath, progress)
}

func (e *YtDlpExtractor) httpDownload(ctx context.Context, pageURL, sourceURL, destPath string, progress domain.ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, domain.NewClassifiedError("download_video", pageURL, domain.CategoryValidation, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, domain.NewClassifiedError("download_video", pageURL, domain.CategoryNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, domain.NewRateLimitError("download_video", pageURL, parseRetryAfter(resp),
			fmt.Errorf("platform returned HTTP 429"))
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone:
		return 0, domain.NewClassifiedError("download_video", pageURL, domain.CategoryContentUnavailable,
			fmt.Errorf("platform returned HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
		return 0, domain.NewClassifiedError("download_video", pageURL, domain.CategoryNetwork,
			fmt.Errorf("platform returned HTTP %d", resp.StatusCode))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, domain.NewClassifiedError("download_video", pageURL, domain.CategorySystem, err)
	}
	defer out.Close()

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return done, domain.NewClassifiedError("download_video", pageURL, domain.CategorySystem, writeErr)
			}
			done += int64(n)
			if progress != nil {
				percent := float64(-1)
				if total > 0 {
					percent = float64(done) / float64(total) * 100
				}
				progress(done, total, percent)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			return done, domain.NewClassifiedError("download_video", pageURL, domain.CategoryNetwork, readErr)
		}
	}

	if progress != nil {
		progress(done, total, 100)
	}
	return done, nil
}

var progressLine = regexp.MustCompile(`\[download\]\s+([\d.]+)%(?:\s+of\s+~?\s*([\d.]+)(KiB|MiB|GiB))?`)

func (e *YtDlpExtractor) binaryDownload(ctx context.Context, url, formatID, destPath string, progress domain.ProgressFunc) (int64, error) {
	args := []string{"--newline", "--no-playlist", "-o", destPath}
	if formatID != "" {
		args = append(args, "-f", formatID)
	}
	args = e.appendCommonArgs(args)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, domain.NewClassifiedError("download_video", url, domain.CategorySystem, err)
	}

	if err := cmd.Start(); err != nil {
		return 0, domain.NewClassifiedError("download_video", url, domain.CategorySystem, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		if m := progressLine.FindStringSubmatch(scanner.Text()); m != nil {
			percent, _ := strconv.ParseFloat(m[1], 64)
			var total int64
			if m[2] != "" {
				total = parseSize(m[2], m[3])
			}
			done := int64(float64(total) * percent / 100)
			progress(done, total, percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, classifyExtractorOutput("download_video", url, stderr.String(), err)
	}

	fi, err := os.Stat(destPath)
	if err != nil {
		return 0, domain.NewClassifiedError("download_video", url, domain.CategorySystem,
			fmt.Errorf("extractor reported success but wrote no file: %w", err))
	}
	if progress != nil {
		progress(fi.Size(), fi.Size(), 100)
	}
	return fi.Size(), nil
}

func (e *YtDlpExtractor) appendCommonArgs(args []string) []string {
	if e.cookieFile != "" && fileExists(e.cookieFile) {
		args = append(args, "--cookies", e.cookieFile)
	}
	return append(args, e.extraArgs...)
}

// classifyExtractorOutput maps the binary's stderr to an error category.
// Unrecognized failures default to network, the only retryable category.
func classifyExtractorOutput(op, url, output string, cause error) error {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "http error 429"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"):
		return domain.NewRateLimitError(op, url, 0, fmt.Errorf("%s: %w", firstLine(output), cause))

	case strings.Contains(lower, "private video"),
		strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "this post is unavailable"),
		strings.Contains(lower, "content isn't available"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "account is private"),
		strings.Contains(lower, "not available in your country"),
		strings.Contains(lower, "http error 404"),
		strings.Contains(lower, "http error 410"):
		return domain.NewClassifiedError(op, url, domain.CategoryContentUnavailable,
			fmt.Errorf("%s: %w", firstLine(output), cause))

	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"):
		return domain.NewClassifiedError(op, url, domain.CategoryValidation,
			fmt.Errorf("%s: %w", firstLine(output), cause))

	case strings.Contains(lower, "no space left"),
		strings.Contains(lower, "disk quota"),
		strings.Contains(lower, "permission denied"):
		return domain.NewClassifiedError(op, url, domain.CategorySystem,
			fmt.Errorf("%s: %w", firstLine(output), cause))

	default:
		return domain.NewClassifiedError(op, url, domain.CategoryNetwork,
			fmt.Errorf("%s: %w", firstLine(output), cause))
	}
}

func firstLine(output string) string {
	output = strings.TrimSpace(output)
	// yt-dlp prefixes real failures with "ERROR:"; prefer that line
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(line)
		}
	}
	if idx := strings.IndexByte(output, '\n'); idx > 0 {
		return output[:idx]
	}
	if output == "" {
		return "extractor failed"
	}
	return output
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func parseSize(value, unit string) int64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "KiB":
		f *= 1 << 10
	case "MiB":
		f *= 1 << 20
	case "GiB":
		f *= 1 << 30
	}
	return int64(f)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
