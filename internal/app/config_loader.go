package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("yaml")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vid-extract")
		v.AddConfigPath("/etc/vid-extract")
	}

	// Read environment variables
	v.SetEnvPrefix("VIDEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in paths
	config = expandPaths(config)

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.TempDir = expandPath(config.Download.TempDir)
	config.Download.CompletedDir = expandPath(config.Download.CompletedDir)
	config.Cache.PersistPath = expandPath(config.Cache.PersistPath)

	for name, platform := range config.Platforms {
		platform.CookieFile = expandPath(platform.CookieFile)
		config.Platforms[name] = platform
	}

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Cache.Capacity < 1 {
		return fmt.Errorf("cache capacity must be at least 1")
	}

	if config.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive")
	}

	if config.RateLimit.BucketCapacity < 1 {
		return fmt.Errorf("rate limit bucket capacity must be at least 1")
	}

	if config.RateLimit.RefillInterval <= 0 {
		return fmt.Errorf("rate limit refill interval must be positive")
	}

	if config.RateLimit.FailureThreshold < 1 {
		return fmt.Errorf("circuit breaker failure threshold must be at least 1")
	}

	if config.Concurrency.MaxOperations < 1 {
		return fmt.Errorf("max operations must be at least 1")
	}

	if config.Concurrency.MaxDownloads < 1 {
		return fmt.Errorf("max downloads must be at least 1")
	}

	if config.Concurrency.MaxDownloads > config.Concurrency.MaxOperations {
		return fmt.Errorf("max downloads (%d) cannot exceed max operations (%d)",
			config.Concurrency.MaxDownloads, config.Concurrency.MaxOperations)
	}

	if config.Recovery.MaxAttempts < 1 {
		return fmt.Errorf("recovery max attempts must be at least 1")
	}

	if config.Recovery.Multiplier < 1 {
		return fmt.Errorf("recovery backoff multiplier must be at least 1")
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
