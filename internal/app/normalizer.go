package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// Normalizer maps the external extractor's raw payload into the canonical
// VideoInfo model. It has no dependencies on the rest of the pipeline.
type Normalizer struct{}

// NewNormalizer creates a normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize builds an immutable VideoInfo from a raw extractor payload
func (n *Normalizer) Normalize(platform domain.Platform, canonicalURL string, raw *domain.RawVideoInfo) *domain.VideoInfo {
	info := &domain.VideoInfo{
		Platform:    platform,
		ID:          raw.ID,
		URL:         canonicalURL,
		Title:       raw.Title,
		Description: raw.Description,
		Creator:     raw.Uploader,
		CreatorID:   raw.UploaderID,
		Duration:    time.Duration(raw.Duration * float64(time.Second)),
		PublishedAt: n.PublishTime(raw),
		Engagement: domain.EngagementCounts{
			Views:    raw.ViewCount,
			Likes:    raw.LikeCount,
			Comments: raw.CommentCount,
			Shares:   raw.RepostCount,
		},
		Thumbnail:   raw.Thumbnail,
		ExtractedAt: time.Now(),
	}
	if raw.WebpageURL != "" {
		info.URL = raw.WebpageURL
	}
	for _, rf := range raw.Formats {
		f := n.normalizeFormat(platform, rf)
		if f.ID == "" {
			continue
		}
		info.Formats = append(info.Formats, f)
	}
	// Highest quality first
	sort.SliceStable(info.Formats, func(i, j int) bool {
		return info.Formats[i].Height > info.Formats[j].Height
	})
	return info
}

func (n *Normalizer) normalizeFormat(platform domain.Platform, rf domain.RawFormat) domain.Format {
	size := rf.Filesize
	if size == 0 {
		size = rf.FilesizeApp
	}
	f := domain.Format{
		ID:         rf.FormatID,
		Quality:    qualityLabel(rf),
		Container:  rf.Ext,
		VideoCodec: rf.VCodec,
		AudioCodec: rf.ACodec,
		Width:      rf.Width,
		Height:     rf.Height,
		ApproxSize: size,
		SourceURL:  rf.URL,
		Note:       rf.FormatNote,
	}
	// TikTok ships watermarked renditions unless the note says otherwise
	if platform == domain.PlatformTikTok {
		note := strings.ToLower(rf.FormatNote)
		f.HasWatermark = !strings.Contains(note, "no watermark") && !strings.Contains(note, "nowm")
	}
	return f
}

func qualityLabel(rf domain.RawFormat) string {
	if rf.Height > 0 {
		return fmt.Sprintf("%dp", rf.Height)
	}
	if rf.VCodec == "none" && rf.ACodec != "" && rf.ACodec != "none" {
		return "audio"
	}
	if rf.FormatNote != "" {
		return rf.FormatNote
	}
	return rf.FormatID
}

// PublishTime resolves the publish time from the raw payload, preferring
// the unix timestamp over the coarse upload date
func (n *Normalizer) PublishTime(raw *domain.RawVideoInfo) time.Time {
	if raw.Timestamp > 0 {
		return time.Unix(raw.Timestamp, 0).UTC()
	}
	if t, err := ParseUploadDate(raw.UploadDate); err == nil {
		return t
	}
	return time.Time{}
}

// ParseUploadDate parses the extractor's YYYYMMDD upload date
func ParseUploadDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return time.Time{}, fmt.Errorf("invalid upload date %q", s)
	}
	if _, err := strconv.Atoi(s); err != nil {
		return time.Time{}, fmt.Errorf("invalid upload date %q", s)
	}
	return time.Parse("20060102", s)
}

// SelectFormat picks the format matching the requested quality. When that
// quality is unavailable the next-lower available quality is selected and
// the substitution reported through the degraded flag; when nothing lower
// exists the lowest available rendition is used. "best" (or empty) takes
// the highest quality without counting as degradation.
func (n *Normalizer) SelectFormat(formats []domain.Format, requested string) (domain.Format, bool, error) {
	var video []domain.Format
	for _, f := range formats {
		if f.Height > 0 {
			video = append(video, f)
		}
	}
	if len(video) == 0 {
		return domain.Format{}, false, fmt.Errorf("no downloadable video formats")
	}
	sort.SliceStable(video, func(i, j int) bool { return video[i].Height > video[j].Height })

	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" || requested == "best" {
		return video[0], false, nil
	}

	height, err := strconv.Atoi(strings.TrimSuffix(requested, "p"))
	if err != nil {
		return domain.Format{}, false, fmt.Errorf("invalid quality preference %q", requested)
	}

	for _, f := range video {
		if f.Height == height {
			return f, false, nil
		}
	}
	// Degrade to the next lower available quality
	for _, f := range video {
		if f.Height < height {
			return f, true, nil
		}
	}
	// Nothing at or below the request; take the lowest available
	return video[len(video)-1], true, nil
}
