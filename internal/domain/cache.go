package domain

import (
	"time"
)

// TTLClass names the policy bucket controlling how long a cache entry
// remains valid. Longer TTLs belong to data that changes less.
type TTLClass string

const (
	TTLVideoInfo       TTLClass = "video-info"
	TTLFormatSelection TTLClass = "format-selection"
	TTLUploadDate      TTLClass = "upload-date"
)

// CacheEntry is owned exclusively by the cache. An entry is never returned
// after now > InsertedAt + ttl of its class.
type CacheEntry struct {
	Key        string
	Value      interface{}
	TTLClass   TTLClass
	InsertedAt time.Time
	LastAccess time.Time
}

// CacheStats reports cache effectiveness counters
type CacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Size        int   `json:"size"`
	Capacity    int   `json:"capacity"`
}

// CacheStore persists cache entries across restarts. Implementations must
// keep the TTL class and insertion timestamp so expiry survives a restart.
type CacheStore interface {
	Load() ([]CacheEntry, error)
	Save(entry CacheEntry) error
	Delete(key string) error
	Close() error
}
