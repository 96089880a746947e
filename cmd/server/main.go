package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/api"
	"github.com/yourusername/vid-extract-go/internal/app"
	"github.com/yourusername/vid-extract-go/internal/domain"
	"github.com/yourusername/vid-extract-go/internal/infrastructure"
	"github.com/yourusername/vid-extract-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	// Load configuration
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting vid-extract server",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Int("max_operations", config.Concurrency.MaxOperations),
		zap.Int("max_downloads", config.Concurrency.MaxDownloads))

	// Create download directories
	if err := createDirectories(config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	// Optional on-disk cache persistence
	var store domain.CacheStore
	if config.Cache.PersistPath != "" {
		store, err = infrastructure.NewSQLiteCacheStore(config.Cache.PersistPath)
		if err != nil {
			log.Fatal("Failed to open cache store", zap.Error(err))
		}
	}

	// Wire the framework: every platform shares the pooled HTTP client
	// through a yt-dlp extractor configured per platform
	var framework *app.FrameworkContext
	framework, err = app.NewFrameworkContext(config, store,
		func(platform domain.Platform, cfg domain.PlatformConfig, client *http.Client) domain.Extractor {
			return infrastructure.NewYtDlpExtractor(platform, cfg, client, log)
		}, log)
	if err != nil {
		log.Fatal("Failed to initialize framework", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	framework.Start(ctx)

	// Setup HTTP router
	router := api.SetupRouter(framework, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	if err := framework.Close(); err != nil {
		log.Error("Error closing framework", zap.Error(err))
	}

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Download.TempDir,
		config.Download.CompletedDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
