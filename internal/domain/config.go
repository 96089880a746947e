package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig              `mapstructure:"server"`
	Cache       CacheConfig               `mapstructure:"cache"`
	RateLimit   RateLimitConfig           `mapstructure:"rate_limit"`
	Concurrency ConcurrencyConfig         `mapstructure:"concurrency"`
	Recovery    RecoveryConfig            `mapstructure:"recovery"`
	Download    DownloadConfig            `mapstructure:"download"`
	Platforms   map[string]PlatformConfig `mapstructure:"platforms"`
	Logging     LoggingConfig             `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CacheConfig controls the extraction cache
type CacheConfig struct {
	Capacity           int           `mapstructure:"capacity"`
	VideoInfoTTL       time.Duration `mapstructure:"video_info_ttl"`
	FormatSelectionTTL time.Duration `mapstructure:"format_selection_ttl"`
	UploadDateTTL      time.Duration `mapstructure:"upload_date_ttl"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	PersistPath        string        `mapstructure:"persist_path"` // empty disables persistence
}

// RateLimitConfig controls the per-platform token bucket and circuit breaker
type RateLimitConfig struct {
	BucketCapacity   int           `mapstructure:"bucket_capacity"`
	RefillInterval   time.Duration `mapstructure:"refill_interval"` // one token per interval
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	FailureWindow    time.Duration `mapstructure:"failure_window"`
	OpenCooldown     time.Duration `mapstructure:"open_cooldown"`
	MaxCooldown      time.Duration `mapstructure:"max_cooldown"`
}

// ConcurrencyConfig bounds concurrent outbound work
type ConcurrencyConfig struct {
	MaxOperations   int           `mapstructure:"max_operations"`
	MaxDownloads    int           `mapstructure:"max_downloads"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`
}

// RecoveryConfig controls retry backoff for transient failures
type RecoveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      float64       `mapstructure:"jitter"` // fraction of the delay, 0 disables
}

// DownloadConfig contains download directory configuration
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir"`
	TempDir          string        `mapstructure:"temp_dir"`
	CompletedDir     string        `mapstructure:"completed_dir"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// PlatformConfig contains per-platform extractor settings
type PlatformConfig struct {
	Binary     string   `mapstructure:"binary"`
	CookieFile string   `mapstructure:"cookie_file"`
	ExtraArgs  []string `mapstructure:"extra_args"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Cache: CacheConfig{
			Capacity:           512,
			VideoInfoTTL:       30 * time.Minute,
			FormatSelectionTTL: 60 * time.Minute,
			UploadDateTTL:      24 * time.Hour,
			SweepInterval:      5 * time.Minute,
			PersistPath:        "",
		},
		RateLimit: RateLimitConfig{
			BucketCapacity:   10,
			RefillInterval:   2 * time.Second,
			AcquireTimeout:   30 * time.Second,
			FailureThreshold: 5,
			FailureWindow:    time.Minute,
			OpenCooldown:     30 * time.Second,
			MaxCooldown:      10 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			MaxOperations:   5,
			MaxDownloads:    3,
			MaxConnsPerHost: 4,
			IdleConnTimeout: 90 * time.Second,
		},
		Recovery: RecoveryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Multiplier:  2.0,
			MaxDelay:    30 * time.Second,
			Jitter:      0.2,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/Downloads/vid-extract",
			TempDir:          "$HOME/Downloads/vid-extract/incoming",
			CompletedDir:     "$HOME/Downloads/vid-extract/completed",
			ProgressInterval: 500 * time.Millisecond,
		},
		Platforms: map[string]PlatformConfig{
			"youtube":   {Binary: "yt-dlp"},
			"x":         {Binary: "yt-dlp"},
			"tiktok":    {Binary: "yt-dlp"},
			"instagram": {Binary: "yt-dlp"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
