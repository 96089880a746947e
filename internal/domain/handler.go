package domain

import (
	"context"
)

// PlatformHandler is the per-platform component implementing metadata
// extraction and download. Handler instances are stateless aside from
// shared cache and rate-limiter references; all per-request state lives
// on the call stack.
type PlatformHandler interface {
	// PlatformID returns the platform this handler serves
	PlatformID() Platform

	// IsValidURL reports whether the URL matches this platform's patterns.
	// Pure pattern check, no I/O.
	IsValidURL(url string) bool

	// GetCapabilities returns the static capability description
	GetCapabilities() Capabilities

	// GetVideoInfo extracts canonical metadata for the URL
	GetVideoInfo(ctx context.Context, url string) (*VideoInfo, error)

	// DownloadVideo selects a format for the quality preference, transfers
	// the media into destDir and reports progress at bounded intervals.
	// Transient network failures are retried under the recovery policy;
	// content-not-found failures are not.
	DownloadVideo(ctx context.Context, url, destDir, quality string, progress ProgressFunc) (*DownloadResult, error)
}

// RawFormat is one format descriptor as reported by the external extractor
type RawFormat struct {
	FormatID     string  `json:"format_id"`
	Ext          string  `json:"ext"`
	VCodec       string  `json:"vcodec"`
	ACodec       string  `json:"acodec"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Filesize     int64   `json:"filesize"`
	FilesizeApp  int64   `json:"filesize_approx"`
	URL          string  `json:"url"`
	FormatNote   string  `json:"format_note"`
	TBR          float64 `json:"tbr"`
}

// RawVideoInfo is the external extractor's metadata payload, prior to
// normalization. Field names follow the extractor's JSON output.
type RawVideoInfo struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Uploader     string      `json:"uploader"`
	UploaderID   string      `json:"uploader_id"`
	Duration     float64     `json:"duration"`
	Timestamp    int64       `json:"timestamp"`
	UploadDate   string      `json:"upload_date"` // YYYYMMDD
	ViewCount    int64       `json:"view_count"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	RepostCount  int64       `json:"repost_count"`
	Thumbnail    string      `json:"thumbnail"`
	WebpageURL   string      `json:"webpage_url"`
	Formats      []RawFormat `json:"formats"`
}

// Extractor is the external per-platform extraction routine. It is treated
// as a black box; retries and rate limiting are the framework's job.
type Extractor interface {
	// FetchMetadata returns the raw platform metadata for a URL
	FetchMetadata(ctx context.Context, url string) (*RawVideoInfo, error)

	// Download transfers the media for the given format to destPath and
	// returns the number of bytes written. destPath is a temporary path;
	// the caller renames it on success.
	Download(ctx context.Context, url string, format Format, destPath string, progress ProgressFunc) (int64, error)
}
