package app

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// ExtractorFactory builds the external extractor for one platform. The
// client is the framework's pooled HTTP client; direct media transfers
// should go through it so per-host connection caps hold.
type ExtractorFactory func(platform domain.Platform, cfg domain.PlatformConfig, client *http.Client) domain.Extractor

// builtinPlatforms are the shipped registrations, in authoritative order.
// YouTube is registered first so youtu.be short links never fall through
// to broader patterns.
var builtinPlatforms = []struct {
	platform domain.Platform
	patterns []string
	caps     domain.Capabilities
}{
	{
		platform: domain.PlatformYouTube,
		patterns: []string{
			`^https?://(www\.|m\.)?youtube\.com/(watch\?|shorts/)`,
			`^https?://youtu\.be/[\w-]+`,
		},
		caps: domain.Capabilities{
			Platform:         domain.PlatformYouTube,
			SupportsDownload: true,
			SupportsMetadata: true,
			SupportsPlaylist: true,
		},
	},
	{
		platform: domain.PlatformX,
		patterns: []string{
			`^https?://(www\.)?(x\.com|twitter\.com)/[^/]+/status/\d+`,
		},
		caps: domain.Capabilities{
			Platform:         domain.PlatformX,
			SupportsDownload: true,
			SupportsMetadata: true,
			RequiresAuth:     true,
		},
	},
	{
		platform: domain.PlatformTikTok,
		patterns: []string{
			`^https?://(www\.|vm\.|vt\.)?tiktok\.com/`,
		},
		caps: domain.Capabilities{
			Platform:         domain.PlatformTikTok,
			SupportsDownload: true,
			SupportsMetadata: true,
		},
	},
	{
		platform: domain.PlatformInstagram,
		patterns: []string{
			`^https?://(www\.)?instagram\.com/(p|reel|reels|tv)/`,
		},
		caps: domain.Capabilities{
			Platform:         domain.PlatformInstagram,
			SupportsDownload: true,
			SupportsMetadata: true,
			RequiresAuth:     true,
		},
	},
}

// FrameworkContext owns the shared framework state: the cache, the
// per-platform rate-limit table, the concurrency controller and the
// registry. It replaces any process-wide globals; tests construct
// isolated contexts of their own.
type FrameworkContext struct {
	Config     *domain.Config
	Cache      *ExtractionCache
	Limiters   *LimiterTable
	Controller *ConcurrencyController
	Recovery   *RecoveryEngine
	Normalizer *Normalizer
	Registry   *Registry
	Tracker    *DownloadTracker

	logger *zap.Logger
	store  domain.CacheStore
	stop   context.CancelFunc
}

// NewFrameworkContext wires the framework from config. The cache store may
// be nil to keep the cache memory-only; extractorFor builds the external
// extraction routine per platform.
func NewFrameworkContext(cfg *domain.Config, store domain.CacheStore, extractorFor ExtractorFactory, logger *zap.Logger) (*FrameworkContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fc := &FrameworkContext{
		Config:     cfg,
		Cache:      NewExtractionCache(cfg.Cache, store, logger),
		Limiters:   NewLimiterTable(cfg.RateLimit, logger),
		Controller: NewConcurrencyController(cfg.Concurrency),
		Recovery:   NewRecoveryEngine(cfg.Recovery),
		Normalizer: NewNormalizer(),
		Registry:   NewRegistry(),
		logger:     logger,
		store:      store,
	}
	fc.Tracker = NewDownloadTracker(cfg.Download.CompletedDir, logger)

	for _, p := range builtinPlatforms {
		platformCfg := cfg.Platforms[string(p.platform)]
		extractor := extractorFor(p.platform, platformCfg, fc.Controller.HTTPClient())

		compiled := make([]*regexp.Regexp, 0, len(p.patterns))
		for _, pattern := range p.patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("platform %s: %w", p.platform, err)
			}
			compiled = append(compiled, re)
		}

		handler := NewHandler(p.platform, compiled, p.caps, HandlerDeps{
			Extractor:        extractor,
			Cache:            fc.Cache,
			Limiter:          fc.Limiters.For(p.platform),
			Controller:       fc.Controller,
			Recovery:         fc.Recovery,
			Normalizer:       fc.Normalizer,
			Logger:           logger,
			TempDir:          cfg.Download.TempDir,
			ProgressInterval: cfg.Download.ProgressInterval,
		})

		if err := fc.Registry.Register(p.platform, p.patterns, func() domain.PlatformHandler {
			return handler
		}); err != nil {
			return nil, err
		}
	}

	return fc, nil
}

// Start launches the background loops (cache sweeper) until Close
func (fc *FrameworkContext) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	fc.stop = cancel
	go fc.Cache.StartSweeper(ctx, fc.Config.Cache.SweepInterval)
}

// Close stops background loops, waits out tracked downloads and releases
// pooled resources
func (fc *FrameworkContext) Close() error {
	if fc.stop != nil {
		fc.stop()
	}
	fc.Tracker.Wait()
	fc.Controller.CloseIdleConnections()
	if fc.store != nil {
		if err := fc.store.Close(); err != nil {
			return fmt.Errorf("failed to close cache store: %w", err)
		}
	}
	return nil
}
