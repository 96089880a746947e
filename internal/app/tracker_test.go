package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

func waitForStatus(t *testing.T, tracker *DownloadTracker, id string, want domain.DownloadStatus) *ActiveDownload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if dl := tracker.Get(id); dl != nil && dl.Status == want {
			return dl
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("download %s never reached status %s", id, want)
	return nil
}

func TestTracker_CompletedDownload(t *testing.T) {
	ext := &mockExtractor{raw: testRawInfo(), downloadBody: []byte("media")}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)

	dl := tracker.Start(context.Background(), h, testVideoURL, "best")
	require.NotEmpty(t, dl.ID)
	assert.Equal(t, domain.PlatformYouTube, dl.Platform)

	final := waitForStatus(t, tracker, dl.ID, domain.StatusCompleted)
	assert.Equal(t, float64(100), final.Percent)
	require.NotNil(t, final.Result)
	assert.True(t, final.Result.Success)

	tracker.Wait()
}

func TestTracker_FailedDownloadCarriesErrorContext(t *testing.T) {
	ext := &mockExtractor{
		raw: testRawInfo(),
		fetchErrs: []error{
			domain.NewClassifiedError("get_video_info", testVideoURL,
				domain.CategoryContentUnavailable, assert.AnError),
		},
	}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)

	dl := tracker.Start(context.Background(), h, testVideoURL, "best")
	final := waitForStatus(t, tracker, dl.ID, domain.StatusFailed)

	require.NotNil(t, final.ErrorCtx)
	assert.Equal(t, domain.CategoryContentUnavailable, final.ErrorCtx.Category)
	assert.NotEmpty(t, final.ErrorCtx.SuggestedAction)

	tracker.Wait()
}

func TestTracker_CancelInFlight(t *testing.T) {
	ext := &mockExtractor{
		raw:           testRawInfo(),
		downloadBody:  []byte("partial"),
		blockDownload: true,
		started:       make(chan struct{}),
	}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)

	dl := tracker.Start(context.Background(), h, testVideoURL, "best")
	<-ext.started

	require.NoError(t, tracker.Cancel(dl.ID))
	final := waitForStatus(t, tracker, dl.ID, domain.StatusCancelled)
	assert.Equal(t, domain.StatusCancelled, final.Status)

	// Terminal downloads cannot be cancelled again
	tracker.Wait()
	assert.Error(t, tracker.Cancel(dl.ID))
}

func TestTracker_CancelUnknownID(t *testing.T) {
	tracker := NewDownloadTracker(t.TempDir(), nil)
	assert.Error(t, tracker.Cancel("no-such-id"))
}

func TestTracker_SubscribeReceivesTerminalEvent(t *testing.T) {
	ext := &mockExtractor{raw: testRawInfo(), downloadBody: []byte("media")}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)

	dl := tracker.Start(context.Background(), h, testVideoURL, "best")
	ch, unsub, err := tracker.Subscribe(dl.ID)
	require.NoError(t, err)
	defer unsub()

	var last ProgressEvent
	sawEvent := false
	for event := range ch {
		sawEvent = true
		last = event
	}
	// The channel closes after the terminal event; a subscriber attaching
	// after completion gets an already-closed channel instead
	if sawEvent {
		assert.Equal(t, domain.StatusCompleted, last.Status)
	}

	final := tracker.Get(dl.ID)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	tracker.Wait()
}

func TestTracker_PrunesOldTerminalEntries(t *testing.T) {
	ext := &mockExtractor{raw: testRawInfo(), downloadBody: []byte("media")}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)
	tracker.retainTerminal = 1

	a := tracker.Start(context.Background(), h, testVideoURL, "best")
	tracker.Wait()
	b := tracker.Start(context.Background(), h, testVideoURL, "best")
	tracker.Wait()

	// Starting a third download pushes the oldest finished one out
	c := tracker.Start(context.Background(), h, testVideoURL, "best")
	tracker.Wait()

	assert.Nil(t, tracker.Get(a.ID), "oldest finished download is pruned")
	assert.NotNil(t, tracker.Get(b.ID), "most recent finished download is retained")
	assert.NotNil(t, tracker.Get(c.ID))
	assert.Len(t, tracker.List(), 2)
}

func TestTracker_InFlightNeverPruned(t *testing.T) {
	ext := &mockExtractor{
		raw:           testRawInfo(),
		downloadBody:  []byte("partial"),
		blockDownload: true,
		started:       make(chan struct{}),
	}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)
	tracker.retainTerminal = 0

	dl := tracker.Start(context.Background(), h, testVideoURL, "best")
	<-ext.started

	// Pruning runs on every start but must skip the active download
	ext2 := &mockExtractor{raw: testRawInfo(), downloadBody: []byte("media")}
	h2 := newTestPipelineHandler(t, ext2)
	other := tracker.Start(context.Background(), h2, testVideoURL, "best")

	assert.NotNil(t, tracker.Get(dl.ID), "in-flight download survives pruning")
	assert.NotNil(t, tracker.Get(other.ID))

	require.NoError(t, tracker.Cancel(dl.ID))
	tracker.Wait()
}

func TestTracker_ListSnapshots(t *testing.T) {
	ext := &mockExtractor{raw: testRawInfo(), downloadBody: []byte("media")}
	h := newTestPipelineHandler(t, ext)
	tracker := NewDownloadTracker(t.TempDir(), nil)

	a := tracker.Start(context.Background(), h, testVideoURL, "best")
	b := tracker.Start(context.Background(), h, testVideoURL, "360p")
	tracker.Wait()

	list := tracker.List()
	assert.Len(t, list, 2)
	ids := map[string]bool{}
	for _, dl := range list {
		ids[dl.ID] = true
	}
	assert.True(t, ids[a.ID])
	assert.True(t, ids[b.ID])
}
