package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 512, config.Cache.Capacity)
	assert.Equal(t, 30*time.Minute, config.Cache.VideoInfoTTL)
	assert.Equal(t, 60*time.Minute, config.Cache.FormatSelectionTTL)
	assert.Equal(t, 24*time.Hour, config.Cache.UploadDateTTL)
	assert.Empty(t, config.Cache.PersistPath)
	assert.Equal(t, 10, config.RateLimit.BucketCapacity)
	assert.Equal(t, 2*time.Second, config.RateLimit.RefillInterval)
	assert.Equal(t, 5, config.RateLimit.FailureThreshold)
	assert.Equal(t, 5, config.Concurrency.MaxOperations)
	assert.Equal(t, 3, config.Concurrency.MaxDownloads)
	assert.Equal(t, 3, config.Recovery.MaxAttempts)
	assert.Equal(t, 2.0, config.Recovery.Multiplier)
	assert.Equal(t, 500*time.Millisecond, config.Download.ProgressInterval)
	assert.Equal(t, "info", config.Logging.Level)

	for _, platform := range []string{"youtube", "x", "tiktok", "instagram"} {
		assert.Contains(t, config.Platforms, platform)
	}
}
