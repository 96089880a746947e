package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteCacheStore {
	t.Helper()
	store, err := NewSQLiteCacheStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteCacheStore_VideoInfoRoundtrip(t *testing.T) {
	store := newTestStore(t)

	inserted := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	info := &domain.VideoInfo{
		Platform: domain.PlatformYouTube,
		ID:       "vid1",
		URL:      "https://www.youtube.com/watch?v=vid1",
		Title:    "A video",
		Creator:  "Creator",
		Formats: []domain.Format{
			{ID: "hd", Quality: "720p", Container: "mp4", Height: 720},
		},
	}

	require.NoError(t, store.Save(domain.CacheEntry{
		Key:        "info|https://www.youtube.com/watch?v=vid1",
		Value:      info,
		TTLClass:   domain.TTLVideoInfo,
		InsertedAt: inserted,
		LastAccess: inserted,
	}))

	entries, err := store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, domain.TTLVideoInfo, entry.TTLClass)
	assert.True(t, entry.InsertedAt.Equal(inserted), "insertion timestamp survives the roundtrip")

	restored, ok := entry.Value.(*domain.VideoInfo)
	require.True(t, ok)
	assert.Equal(t, "vid1", restored.ID)
	assert.Equal(t, "A video", restored.Title)
	require.Len(t, restored.Formats, 1)
	assert.Equal(t, "720p", restored.Formats[0].Quality)
}

func TestSQLiteCacheStore_FormatSelectionRoundtrip(t *testing.T) {
	store := newTestStore(t)

	sel := &domain.FormatSelection{
		Requested: "1080p",
		Format:    domain.Format{ID: "hd", Quality: "720p", Container: "mp4", Height: 720},
		Degraded:  true,
	}
	require.NoError(t, store.Save(domain.CacheEntry{
		Key:        "format-selection|url|1080p",
		Value:      sel,
		TTLClass:   domain.TTLFormatSelection,
		InsertedAt: time.Now(),
	}))

	entries, err := store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	restored, ok := entries[0].Value.(*domain.FormatSelection)
	require.True(t, ok)
	assert.Equal(t, "1080p", restored.Requested)
	assert.True(t, restored.Degraded)
}

func TestSQLiteCacheStore_UploadDateRoundtrip(t *testing.T) {
	store := newTestStore(t)

	published := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(domain.CacheEntry{
		Key:        "upload-date|url",
		Value:      published,
		TTLClass:   domain.TTLUploadDate,
		InsertedAt: time.Now(),
	}))

	entries, err := store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	restored, ok := entries[0].Value.(time.Time)
	require.True(t, ok)
	assert.True(t, restored.Equal(published))
}

func TestSQLiteCacheStore_SaveUpserts(t *testing.T) {
	store := newTestStore(t)

	entry := domain.CacheEntry{
		Key:        "upload-date|url",
		Value:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		TTLClass:   domain.TTLUploadDate,
		InsertedAt: time.Now(),
	}
	require.NoError(t, store.Save(entry))

	entry.Value = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(entry))

	entries, err := store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Value.(time.Time).Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSQLiteCacheStore_Delete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(domain.CacheEntry{
		Key:        "upload-date|url",
		Value:      time.Now(),
		TTLClass:   domain.TTLUploadDate,
		InsertedAt: time.Now(),
	}))
	require.NoError(t, store.Delete("upload-date|url"))

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Deleting a missing key is not an error
	assert.NoError(t, store.Delete("missing"))
}

func TestSQLiteCacheStore_DropsUnknownClassRows(t *testing.T) {
	store := newTestStore(t)

	// Simulate a row written by a newer build with an unknown TTL class
	row := cachedExtraction{
		Key:        "mystery",
		TTLClass:   "future-class",
		Value:      `{"whatever":true}`,
		InsertedAt: time.Now(),
	}
	require.NoError(t, store.db.Create(&row).Error)

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries, "unreadable rows are dropped, not surfaced")
}
