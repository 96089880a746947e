package domain

import (
	"time"
)

// Platform identifies the source platform for a URL
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformX         Platform = "x" // X/Twitter
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Format describes one downloadable rendition of a video.
// SourceURL may be short-lived and must never be persisted past the
// download attempt that used it.
type Format struct {
	ID            string `json:"format_id"`
	Quality       string `json:"quality"` // e.g. "1080p", "720p", "audio"
	Container     string `json:"ext"`
	VideoCodec    string `json:"vcodec,omitempty"`
	AudioCodec    string `json:"acodec,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	ApproxSize    int64  `json:"filesize_approx,omitempty"`
	HasWatermark  bool   `json:"has_watermark,omitempty"`
	SourceURL     string `json:"-"`
	Note          string `json:"format_note,omitempty"`
}

// EngagementCounts holds the stat counters reported by a platform
type EngagementCounts struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// VideoInfo is the canonical metadata model returned to callers.
// It is immutable once constructed and owned by the caller after return.
type VideoInfo struct {
	Platform    Platform         `json:"platform"`
	ID          string           `json:"id"`
	URL         string           `json:"url"` // canonical URL
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Creator     string           `json:"creator"`
	CreatorID   string           `json:"creator_id,omitempty"`
	Duration    time.Duration    `json:"duration"`
	PublishedAt time.Time        `json:"published_at"`
	Engagement  EngagementCounts `json:"engagement"`
	Formats     []Format         `json:"formats"`
	Thumbnail   string           `json:"thumbnail,omitempty"`
	ExtractedAt time.Time        `json:"extracted_at"`
}

// FormatSelection records which format was chosen for a quality request,
// including whether the handler had to degrade below the requested quality.
type FormatSelection struct {
	Requested string `json:"requested"`
	Format    Format `json:"format"`
	Degraded  bool   `json:"degraded"`
}

// Capabilities is a static description of what a platform handler supports
type Capabilities struct {
	Platform         Platform `json:"platform"`
	SupportsDownload bool     `json:"supports_download"`
	SupportsMetadata bool     `json:"supports_metadata"`
	SupportsPlaylist bool     `json:"supports_playlist"`
	RequiresAuth     bool     `json:"requires_auth"`
}
