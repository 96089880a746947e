package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// cachedExtraction is the persisted form of a cache entry. TTL class and
// insertion timestamp are stored explicitly so expiry survives a restart.
type cachedExtraction struct {
	Key        string    `gorm:"primaryKey"`
	TTLClass   string    `gorm:"not null;index"`
	Value      string    `gorm:"type:text"`
	InsertedAt time.Time `gorm:"not null"`
	LastAccess time.Time
}

// TableName specifies the table name for GORM
func (cachedExtraction) TableName() string {
	return "extraction_cache"
}

// SQLiteCacheStore implements domain.CacheStore using SQLite
type SQLiteCacheStore struct {
	db *gorm.DB
}

// NewSQLiteCacheStore opens (or creates) the cache database at dbPath
func NewSQLiteCacheStore(dbPath string) (*SQLiteCacheStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.AutoMigrate(&cachedExtraction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	return &SQLiteCacheStore{db: db}, nil
}

// Save upserts one cache entry
func (s *SQLiteCacheStore) Save(entry domain.CacheEntry) error {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", entry.Key, err)
	}
	row := cachedExtraction{
		Key:        entry.Key,
		TTLClass:   string(entry.TTLClass),
		Value:      string(value),
		InsertedAt: entry.InsertedAt,
		LastAccess: entry.LastAccess,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Load returns all persisted entries. Rows whose values no longer
// unmarshal are dropped rather than surfaced.
func (s *SQLiteCacheStore) Load() ([]domain.CacheEntry, error) {
	var rows []cachedExtraction
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}

	entries := make([]domain.CacheEntry, 0, len(rows))
	for _, row := range rows {
		value, err := unmarshalCacheValue(domain.TTLClass(row.TTLClass), []byte(row.Value))
		if err != nil {
			s.db.Delete(&cachedExtraction{}, "key = ?", row.Key)
			continue
		}
		entries = append(entries, domain.CacheEntry{
			Key:        row.Key,
			Value:      value,
			TTLClass:   domain.TTLClass(row.TTLClass),
			InsertedAt: row.InsertedAt,
			LastAccess: row.LastAccess,
		})
	}
	return entries, nil
}

// Delete removes one entry by key
func (s *SQLiteCacheStore) Delete(key string) error {
	return s.db.Delete(&cachedExtraction{}, "key = ?", key).Error
}

// Close closes the underlying database
func (s *SQLiteCacheStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// unmarshalCacheValue restores the concrete value type for a TTL class
func unmarshalCacheValue(class domain.TTLClass, data []byte) (interface{}, error) {
	switch class {
	case domain.TTLVideoInfo:
		var info domain.VideoInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, err
		}
		return &info, nil
	case domain.TTLFormatSelection:
		var sel domain.FormatSelection
		if err := json.Unmarshal(data, &sel); err != nil {
			return nil, err
		}
		return &sel, nil
	case domain.TTLUploadDate:
		var t time.Time
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown TTL class %q", class)
	}
}
