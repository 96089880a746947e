package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// Handler drives the request pipeline for one platform:
// cache -> rate limiter/circuit breaker -> concurrency admission ->
// external extractor -> normalizer, with classified-error recovery.
// Instances are stateless per request; the cache, limiter and controller
// are shared framework components.
type Handler struct {
	platform   domain.Platform
	patterns   []*regexp.Regexp
	caps       domain.Capabilities
	extractor  domain.Extractor
	cache      *ExtractionCache
	limiter    *PlatformLimiter
	controller *ConcurrencyController
	recovery   *RecoveryEngine
	normalizer *Normalizer
	flight     singleflight.Group
	logger     *zap.Logger

	tempDir          string
	progressInterval time.Duration
}

// HandlerDeps bundles the shared components a handler composes
type HandlerDeps struct {
	Extractor  domain.Extractor
	Cache      *ExtractionCache
	Limiter    *PlatformLimiter
	Controller *ConcurrencyController
	Recovery   *RecoveryEngine
	Normalizer *Normalizer
	Logger     *zap.Logger

	TempDir          string
	ProgressInterval time.Duration
}

// NewHandler creates a handler for one platform
func NewHandler(platform domain.Platform, patterns []*regexp.Regexp, caps domain.Capabilities, deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.ProgressInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Handler{
		platform:         platform,
		patterns:         patterns,
		caps:             caps,
		extractor:        deps.Extractor,
		cache:            deps.Cache,
		limiter:          deps.Limiter,
		controller:       deps.Controller,
		recovery:         deps.Recovery,
		normalizer:       deps.Normalizer,
		logger:           logger.With(zap.String("platform", string(platform))),
		tempDir:          deps.TempDir,
		progressInterval: interval,
	}
}

// PlatformID returns the platform this handler serves
func (h *Handler) PlatformID() domain.Platform {
	return h.platform
}

// IsValidURL reports whether the URL matches this platform's patterns
func (h *Handler) IsValidURL(url string) bool {
	for _, re := range h.patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// GetCapabilities returns the static capability description
func (h *Handler) GetCapabilities() domain.Capabilities {
	return h.caps
}

// GetVideoInfo extracts canonical metadata for the URL. Concurrent
// requests for the same cache key share one extractor call.
func (h *Handler) GetVideoInfo(ctx context.Context, url string) (*domain.VideoInfo, error) {
	norm, err := h.validated("get_video_info", url)
	if err != nil {
		return nil, err
	}

	key := CacheKey(norm, "info")
	if v, ok := h.cache.Get(key); ok {
		return v.(*domain.VideoInfo), nil
	}

	// The flight runs detached from the winning caller's context so one
	// caller's cancellation cannot fail the coalesced waiters; each caller
	// still stops waiting when its own context ends.
	ch := h.flight.DoChan(key, func() (interface{}, error) {
		return h.fetchInfo(context.WithoutCancel(ctx), url, norm, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.VideoInfo), nil
	}
}

func (h *Handler) fetchInfo(ctx context.Context, url, norm, key string) (*domain.VideoInfo, error) {
	// Another flight may have stored the result between our miss and now
	if v, ok := h.cache.Get(key); ok {
		return v.(*domain.VideoInfo), nil
	}

	for attempt := 1; ; attempt++ {
		raw, err := h.attemptFetch(ctx, url)
		if err == nil {
			info := h.normalizer.Normalize(h.platform, norm, raw)
			dateKey := CacheKey(norm, "upload-date")
			if info.PublishedAt.IsZero() {
				// The upload date outlives the info TTL; restore it when a
				// refetch comes back dateless
				if v, ok := h.cache.Get(dateKey); ok {
					info.PublishedAt = v.(time.Time)
				}
			} else {
				h.cache.Put(dateKey, info.PublishedAt, domain.TTLUploadDate)
			}
			h.cache.Put(key, info, domain.TTLVideoInfo)
			return info, nil
		}

		retryErr := h.maybeRetry(ctx, "get_video_info", url, err, attempt)
		if retryErr != nil {
			return nil, retryErr
		}
	}
}

// DownloadVideo selects a format, streams the media through the download
// pool into a temporary file and renames it into destDir on success.
func (h *Handler) DownloadVideo(ctx context.Context, url, destDir, quality string, progress domain.ProgressFunc) (*domain.DownloadResult, error) {
	start := time.Now()
	norm, err := h.validated("download_video", url)
	if err != nil {
		return &domain.DownloadResult{Err: err}, err
	}

	info, err := h.GetVideoInfo(ctx, url)
	if err != nil {
		return &domain.DownloadResult{Err: err, Duration: time.Since(start)}, err
	}

	sel, err := h.selectFormat(norm, url, info, quality)
	if err != nil {
		return &domain.DownloadResult{Err: err, Duration: time.Since(start)}, err
	}

	finalName := downloadFileName(info, sel.Format)
	finalPath := filepath.Join(destDir, finalName)

	for attempt := 1; ; attempt++ {
		bytes, err := h.attemptDownload(ctx, url, sel.Format, finalPath, progress)
		if err == nil {
			result := &domain.DownloadResult{
				Success:          true,
				FilePath:         finalPath,
				BytesTransferred: bytes,
				Duration:         time.Since(start),
				RequestedQuality: sel.Requested,
				SelectedQuality:  sel.Format.Quality,
				QualityDegraded:  sel.Degraded,
			}
			h.logger.Info("Download completed",
				zap.String("url", url),
				zap.String("file", finalPath),
				zap.Int64("bytes", bytes),
				zap.Duration("duration", result.Duration))
			return result, nil
		}

		retryErr := h.maybeRetry(ctx, "download_video", url, err, attempt)
		if retryErr != nil {
			return &domain.DownloadResult{
				Err:              retryErr,
				Duration:         time.Since(start),
				RequestedQuality: sel.Requested,
				SelectedQuality:  sel.Format.Quality,
				QualityDegraded:  sel.Degraded,
			}, retryErr
		}
	}
}

// validated normalizes the URL and checks the platform patterns, mapping
// failures to validation errors that are never retried
func (h *Handler) validated(op, url string) (string, error) {
	norm, err := NormalizeURL(url)
	if err != nil {
		return "", domain.NewClassifiedError(op, url, domain.CategoryValidation, err)
	}
	if !h.IsValidURL(url) {
		return "", domain.NewClassifiedError(op, url, domain.CategoryValidation,
			fmt.Errorf("URL does not match %s patterns", h.platform))
	}
	return norm, nil
}

// selectFormat resolves the quality preference against the available
// formats, caching the selection separately from the full info
func (h *Handler) selectFormat(norm, url string, info *domain.VideoInfo, quality string) (*domain.FormatSelection, error) {
	qualityKey := strings.ToLower(strings.TrimSpace(quality))
	if qualityKey == "" {
		qualityKey = "best"
	}
	key := CacheKey(norm, "format-selection", qualityKey)
	if v, ok := h.cache.Get(key); ok {
		return v.(*domain.FormatSelection), nil
	}

	format, degraded, err := h.normalizer.SelectFormat(info.Formats, quality)
	if err != nil {
		return nil, domain.NewClassifiedError("download_video", url, domain.CategoryValidation, err)
	}
	if degraded {
		h.logger.Info("Requested quality unavailable, degrading",
			zap.String("url", url),
			zap.String("requested", qualityKey),
			zap.String("selected", format.Quality))
	}

	sel := &domain.FormatSelection{Requested: qualityKey, Format: format, Degraded: degraded}
	h.cache.Put(key, sel, domain.TTLFormatSelection)
	return sel, nil
}

// attemptFetch performs one rate-limited, admission-controlled call to the
// external extractor. The limiter lock is never held across the call.
func (h *Handler) attemptFetch(ctx context.Context, url string) (*domain.RawVideoInfo, error) {
	if err := h.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	var raw *domain.RawVideoInfo
	err := h.controller.RunOperation(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = h.extractor.FetchMetadata(ctx, url)
		return callErr
	})
	h.record(ctx, err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// attemptDownload performs one rate-limited transfer into a temporary
// file, renaming to finalPath only on success. On any failure, including
// cancellation mid-flight, the partial temporary file is removed and
// nothing appears at the final path.
func (h *Handler) attemptDownload(ctx context.Context, url string, format domain.Format, finalPath string, progress domain.ProgressFunc) (int64, error) {
	if err := h.limiter.Acquire(ctx); err != nil {
		return 0, err
	}

	var bytes int64
	err := h.controller.RunDownload(ctx, func(ctx context.Context) error {
		if err := os.MkdirAll(h.tempDir, 0755); err != nil {
			return domain.NewClassifiedError("download_video", url, domain.CategorySystem, err)
		}
		tmpPath := filepath.Join(h.tempDir, fmt.Sprintf(".%s.part", uuid.New().String()))

		n, err := h.extractor.Download(ctx, url, format, tmpPath, h.throttled(progress))
		if err != nil {
			os.Remove(tmpPath)
			return err
		}

		if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
			os.Remove(tmpPath)
			return domain.NewClassifiedError("download_video", url, domain.CategorySystem, err)
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			os.Remove(tmpPath)
			return domain.NewClassifiedError("download_video", url, domain.CategorySystem, err)
		}
		bytes = n
		return nil
	})
	h.record(ctx, err)
	if err != nil {
		return 0, err
	}
	return bytes, nil
}

// record feeds the breaker. Cancellations and admission rejections say
// nothing about platform health; content and validation outcomes mean the
// platform answered and count as successes.
func (h *Handler) record(ctx context.Context, err error) {
	if err == nil {
		h.limiter.RecordSuccess()
		return
	}
	if ctx.Err() != nil {
		return
	}
	switch Classify(err) {
	case domain.CategoryContentUnavailable, domain.CategoryValidation:
		h.limiter.RecordSuccess()
	case domain.CategorySystem:
		// Local resource problem, not the platform's
	default:
		h.limiter.RecordFailure()
	}
}

// maybeRetry classifies a failure and either waits out the recovery delay
// (returning nil so the caller loops) or returns the error to surface.
func (h *Handler) maybeRetry(ctx context.Context, op, url string, err error, attempt int) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	category := Classify(err)
	action := h.recovery.Decide(category, attempt)
	if !action.Retry {
		return h.surface(op, url, category, err)
	}

	delay := action.Delay
	if action.UseRetryAfter {
		if ra := domain.RetryAfterOf(err); ra > 0 {
			delay = ra
		}
	}

	h.logger.Warn("Attempt failed, retrying",
		zap.String("operation", op),
		zap.String("url", url),
		zap.String("category", string(category)),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}
	return nil
}

// surface returns the original classified error, wrapping unclassified
// causes so every surfaced error carries an ErrorContext
func (h *Handler) surface(op, url string, category domain.ErrorCategory, err error) error {
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return err
	}
	return domain.NewClassifiedError(op, url, category, err)
}

// throttled bounds progress callbacks to one per interval or per whole
// percent, whichever is coarser; terminal reports always pass through.
func (h *Handler) throttled(progress domain.ProgressFunc) domain.ProgressFunc {
	if progress == nil {
		return func(int64, int64, float64) {}
	}
	var mu sync.Mutex
	var lastTime time.Time
	var lastPercent float64 = -1
	return func(bytesDone, totalBytes int64, percent float64) {
		mu.Lock()
		now := time.Now()
		terminal := percent >= 100 || percent < 0
		if !terminal && now.Sub(lastTime) < h.progressInterval && percent-lastPercent < 1 {
			mu.Unlock()
			return
		}
		lastTime = now
		lastPercent = percent
		mu.Unlock()
		progress(bytesDone, totalBytes, percent)
	}
}

func downloadFileName(info *domain.VideoInfo, format domain.Format) string {
	creator := sanitizeFileComponent(info.CreatorID)
	if creator == "" {
		creator = sanitizeFileComponent(info.Creator)
	}
	if creator == "" {
		creator = string(info.Platform)
	}
	id := sanitizeFileComponent(info.ID)
	if id == "" {
		id = uuid.New().String()
	}
	ext := format.Container
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("%s_%s.%s", creator, id, ext)
}

func sanitizeFileComponent(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_", "..", "_")
	return replacer.Replace(s)
}
