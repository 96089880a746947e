package domain

import (
	"time"
)

// DownloadStatus represents the state of a tracked download
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// ProgressFunc receives download progress at bounded intervals.
// Percent is in [0,100]; totalBytes is 0 when the size is unknown.
type ProgressFunc func(bytesDone, totalBytes int64, percent float64)

// DownloadResult is created once per download attempt and owned by the caller
type DownloadResult struct {
	Success          bool          `json:"success"`
	FilePath         string        `json:"file_path,omitempty"`
	BytesTransferred int64         `json:"bytes_transferred"`
	Duration         time.Duration `json:"duration"`
	RequestedQuality string        `json:"requested_quality,omitempty"`
	SelectedQuality  string        `json:"selected_quality,omitempty"`
	QualityDegraded  bool          `json:"quality_degraded,omitempty"`
	Err              error         `json:"-"`
}
