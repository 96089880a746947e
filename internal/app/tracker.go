package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// ProgressEvent is one bounded-interval progress report for a tracked
// download
type ProgressEvent struct {
	DownloadID string                `json:"download_id"`
	Status     domain.DownloadStatus `json:"status"`
	BytesDone  int64                 `json:"bytes_done"`
	TotalBytes int64                 `json:"total_bytes"`
	Percent    float64               `json:"percent"`
	Error      string                `json:"error,omitempty"`
}

// ActiveDownload is the in-flight state of one tracked download. This is
// not persisted anywhere; history storage belongs to the external
// persistence layer.
type ActiveDownload struct {
	ID        string                `json:"id"`
	URL       string                `json:"url"`
	Platform  domain.Platform       `json:"platform"`
	Quality   string                `json:"quality,omitempty"`
	Status    domain.DownloadStatus `json:"status"`
	Percent   float64               `json:"percent"`
	BytesDone int64                 `json:"bytes_done"`
	StartedAt time.Time             `json:"started_at"`
	Result    *domain.DownloadResult `json:"result,omitempty"`
	ErrorCtx  *domain.ErrorContext   `json:"error,omitempty"`

	cancel      context.CancelFunc
	subscribers map[chan ProgressEvent]struct{}
}

// DownloadTracker runs downloads in the background and fans progress out
// to subscribers so the API layer can stream and cancel them. Finished
// downloads stay visible until the retention bound pushes them out;
// in-flight downloads are never pruned.
type DownloadTracker struct {
	mu             sync.RWMutex
	downloads      map[string]*ActiveDownload
	destDir        string
	retainTerminal int
	logger         *zap.Logger
	wg             sync.WaitGroup
}

// NewDownloadTracker creates a tracker writing completed files to destDir
func NewDownloadTracker(destDir string, logger *zap.Logger) *DownloadTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadTracker{
		downloads:      make(map[string]*ActiveDownload),
		destDir:        destDir,
		retainTerminal: 64,
		logger:         logger,
	}
}

// Start launches a download through the handler and tracks it. The
// returned record reflects queued state; progress arrives asynchronously.
func (t *DownloadTracker) Start(ctx context.Context, handler domain.PlatformHandler, url, quality string) *ActiveDownload {
	dlCtx, cancel := context.WithCancel(ctx)
	dl := &ActiveDownload{
		ID:          uuid.New().String(),
		URL:         url,
		Platform:    handler.PlatformID(),
		Quality:     quality,
		Status:      domain.StatusQueued,
		StartedAt:   time.Now(),
		cancel:      cancel,
		subscribers: make(map[chan ProgressEvent]struct{}),
	}

	t.mu.Lock()
	t.downloads[dl.ID] = dl
	t.pruneTerminalLocked()
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()

		t.update(dl.ID, func(d *ActiveDownload) {
			d.Status = domain.StatusDownloading
		})

		result, err := handler.DownloadVideo(dlCtx, url, t.destDir, quality, func(bytesDone, totalBytes int64, percent float64) {
			t.update(dl.ID, func(d *ActiveDownload) {
				d.BytesDone = bytesDone
				if percent >= 0 {
					d.Percent = percent
				}
			})
			t.broadcast(dl.ID, ProgressEvent{
				DownloadID: dl.ID,
				Status:     domain.StatusDownloading,
				BytesDone:  bytesDone,
				TotalBytes: totalBytes,
				Percent:    percent,
			})
		})

		t.update(dl.ID, func(d *ActiveDownload) {
			d.Result = result
			switch {
			case err == nil:
				d.Status = domain.StatusCompleted
				d.Percent = 100
			case dlCtx.Err() == context.Canceled:
				d.Status = domain.StatusCancelled
			default:
				d.Status = domain.StatusFailed
				var ce *domain.ClassifiedError
				if errors.As(err, &ce) {
					d.ErrorCtx = &ce.Context
				}
			}
		})

		final := t.Get(dl.ID)
		event := ProgressEvent{DownloadID: dl.ID, Status: final.Status, BytesDone: final.BytesDone, Percent: final.Percent}
		if err != nil {
			event.Error = err.Error()
			t.logger.Warn("Tracked download finished with error",
				zap.String("id", dl.ID), zap.String("url", url), zap.Error(err))
		}
		t.broadcast(dl.ID, event)
		t.closeSubscribers(dl.ID)
	}()

	return dl
}

// Get returns a snapshot of a tracked download, or nil
func (t *DownloadTracker) Get(id string) *ActiveDownload {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dl, ok := t.downloads[id]
	if !ok {
		return nil
	}
	snapshot := *dl
	snapshot.subscribers = nil
	snapshot.cancel = nil
	return &snapshot
}

// List returns snapshots of all tracked downloads
func (t *DownloadTracker) List() []*ActiveDownload {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ActiveDownload, 0, len(t.downloads))
	for _, dl := range t.downloads {
		snapshot := *dl
		snapshot.subscribers = nil
		snapshot.cancel = nil
		out = append(out, &snapshot)
	}
	return out
}

// Cancel aborts an in-flight download. Terminal downloads cannot be
// cancelled.
func (t *DownloadTracker) Cancel(id string) error {
	t.mu.Lock()
	dl, ok := t.downloads[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("download not found: %s", id)
	}
	if dl.Status == domain.StatusCompleted || dl.Status == domain.StatusFailed || dl.Status == domain.StatusCancelled {
		t.mu.Unlock()
		return fmt.Errorf("download already in terminal state: %s", dl.Status)
	}
	cancel := dl.cancel
	t.mu.Unlock()

	cancel()
	t.logger.Info("Download cancelled", zap.String("id", id))
	return nil
}

// Subscribe returns a channel of progress events for a download plus an
// unsubscribe function. The channel closes when the download finishes.
func (t *DownloadTracker) Subscribe(id string) (<-chan ProgressEvent, func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dl, ok := t.downloads[id]
	if !ok {
		return nil, nil, fmt.Errorf("download not found: %s", id)
	}
	ch := make(chan ProgressEvent, 16)
	if dl.subscribers == nil {
		// Already finished; hand back a closed channel
		close(ch)
		return ch, func() {}, nil
	}
	dl.subscribers[ch] = struct{}{}
	unsub := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if dl.subscribers != nil {
			delete(dl.subscribers, ch)
		}
	}
	return ch, unsub, nil
}

// Wait blocks until all tracked downloads finish, used on shutdown
func (t *DownloadTracker) Wait() {
	t.wg.Wait()
}

// pruneTerminalLocked drops the oldest finished downloads beyond the
// retention bound so the table stays sized to in-flight work plus a
// short tail of recent results
func (t *DownloadTracker) pruneTerminalLocked() {
	var terminal []*ActiveDownload
	for _, dl := range t.downloads {
		switch dl.Status {
		case domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled:
			terminal = append(terminal, dl)
		}
	}
	if len(terminal) <= t.retainTerminal {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].StartedAt.Before(terminal[j].StartedAt)
	})
	for _, dl := range terminal[:len(terminal)-t.retainTerminal] {
		delete(t.downloads, dl.ID)
	}
}

func (t *DownloadTracker) update(id string, fn func(*ActiveDownload)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dl, ok := t.downloads[id]; ok {
		fn(dl)
	}
}

func (t *DownloadTracker) broadcast(id string, event ProgressEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dl, ok := t.downloads[id]
	if !ok || dl.subscribers == nil {
		return
	}
	for ch := range dl.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop the event rather than block the download
		}
	}
}

func (t *DownloadTracker) closeSubscribers(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dl, ok := t.downloads[id]
	if !ok {
		return
	}
	for ch := range dl.subscribers {
		close(ch)
	}
	dl.subscribers = nil
}
