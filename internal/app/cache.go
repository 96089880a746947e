package app

import (
	"container/list"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// trackingParams are query parameters stripped during URL normalization.
// Two URLs differing only by these normalize to the same cache key.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"igshid":       true,
	"igsh":         true,
	"si":           true,
	"feature":      true,
	"ref_src":      true,
	"ref_url":      true,
	"s":            true,
	"t":            true,
}

// NormalizeURL canonicalizes a URL for cache keying: scheme and host are
// lowercased, tracking parameters stripped, remaining query sorted, the
// fragment dropped and the trailing slash removed. Normalization is
// idempotent: normalizing an already-normalized URL returns the same string.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	// Rebuild the query with sorted keys so ordering never changes the key
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = sb.String()
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// CacheKey derives a cache key from a normalized URL, the operation type
// and any operation parameters (e.g. requested quality)
func CacheKey(normalizedURL, operation string, params ...string) string {
	parts := append([]string{operation, normalizedURL}, params...)
	return strings.Join(parts, "|")
}

// ExtractionCache is a TTL + LRU key/value store for extraction results.
// It is platform-agnostic and shared by all handlers; concurrent puts to
// the same key serialize under the cache mutex (last write wins, values
// are idempotent re-derivations of the same remote state).
type ExtractionCache struct {
	mu       sync.Mutex
	capacity int
	ttls     map[domain.TTLClass]time.Duration
	order    *list.List // front = most recently used
	entries  map[string]*list.Element

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	store  domain.CacheStore
	logger *zap.Logger

	// now is replaceable in tests
	now func() time.Time
}

// NewExtractionCache creates a cache sized and timed per config.
// A nil store disables persistence.
func NewExtractionCache(cfg domain.CacheConfig, store domain.CacheStore, logger *zap.Logger) *ExtractionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ExtractionCache{
		capacity: cfg.Capacity,
		ttls: map[domain.TTLClass]time.Duration{
			domain.TTLVideoInfo:       cfg.VideoInfoTTL,
			domain.TTLFormatSelection: cfg.FormatSelectionTTL,
			domain.TTLUploadDate:      cfg.UploadDateTTL,
		},
		order:   list.New(),
		entries: make(map[string]*list.Element),
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
	if store != nil {
		c.loadFromStore()
	}
	return c
}

func (c *ExtractionCache) loadFromStore() {
	persisted, err := c.store.Load()
	if err != nil {
		c.logger.Warn("Failed to load persisted cache entries", zap.Error(err))
		return
	}
	now := c.now()
	restored := 0
	for _, entry := range persisted {
		if now.After(entry.InsertedAt.Add(c.ttlFor(entry.TTLClass))) {
			c.store.Delete(entry.Key)
			continue
		}
		e := entry
		c.entries[e.Key] = c.order.PushBack(&e)
		restored++
	}
	if restored > 0 {
		c.logger.Info("Restored cache entries from store", zap.Int("count", restored))
	}
}

func (c *ExtractionCache) ttlFor(class domain.TTLClass) time.Duration {
	if ttl, ok := c.ttls[class]; ok {
		return ttl
	}
	return c.ttls[domain.TTLVideoInfo]
}

// Get returns the stored value for key, or miss. An expired entry behaves
// as a miss and is removed. A hit refreshes the entry's recency.
func (c *ExtractionCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := elem.Value.(*domain.CacheEntry)
	if c.now().After(entry.InsertedAt.Add(c.ttlFor(entry.TTLClass))) {
		c.removeLocked(elem)
		c.expirations++
		c.misses++
		return nil, false
	}
	entry.LastAccess = c.now()
	c.order.MoveToFront(elem)
	c.hits++
	return entry.Value, true
}

// Put stores a value under the given TTL class. When the cache is at
// capacity the least-recently-accessed entry is evicted first, regardless
// of its remaining TTL.
func (c *ExtractionCache) Put(key string, value interface{}, class domain.TTLClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*domain.CacheEntry)
		entry.Value = value
		entry.TTLClass = class
		entry.InsertedAt = now
		entry.LastAccess = now
		c.order.MoveToFront(elem)
		c.persist(entry)
		return
	}

	if c.capacity > 0 && c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.evictions++
		}
	}

	entry := &domain.CacheEntry{
		Key:        key,
		Value:      value,
		TTLClass:   class,
		InsertedAt: now,
		LastAccess: now,
	}
	c.entries[key] = c.order.PushFront(entry)
	c.persist(entry)
}

// Invalidate removes an entry if present
func (c *ExtractionCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Sweep removes all TTL-expired entries independently of access pattern,
// bounding memory under idle load. Returns the number removed.
func (c *ExtractionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*domain.CacheEntry)
		if now.After(entry.InsertedAt.Add(c.ttlFor(entry.TTLClass))) {
			c.removeLocked(elem)
			c.expirations++
			removed++
		}
		elem = next
	}
	return removed
}

// StartSweeper runs the background sweep loop until ctx is cancelled
func (c *ExtractionCache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				c.logger.Debug("Cache sweep removed expired entries", zap.Int("removed", removed))
			}
		}
	}
}

// Stats returns a snapshot of the cache counters
func (c *ExtractionCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.order.Len(),
		Capacity:    c.capacity,
	}
}

// Len returns the number of live entries
func (c *ExtractionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *ExtractionCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*domain.CacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.Key)
	if c.store != nil {
		if err := c.store.Delete(entry.Key); err != nil {
			c.logger.Warn("Failed to delete persisted cache entry",
				zap.String("key", entry.Key), zap.Error(err))
		}
	}
}

func (c *ExtractionCache) persist(entry *domain.CacheEntry) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(*entry); err != nil {
		c.logger.Warn("Failed to persist cache entry",
			zap.String("key", entry.Key), zap.Error(err))
	}
}
