package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/api/handlers"
	"github.com/yourusername/vid-extract-go/api/middleware"
	"github.com/yourusername/vid-extract-go/internal/app"
)

// SetupRouter sets up the HTTP router over the framework context
func SetupRouter(framework *app.FrameworkContext, logger *zap.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(framework)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		videoHandler := handlers.NewVideoHandler(framework, logger)
		v1.POST("/resolve", videoHandler.Resolve)
		v1.POST("/videos/info", videoHandler.GetVideoInfo)

		progressHandler := handlers.NewProgressWebSocketHandler(framework.Tracker, logger)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", videoHandler.AddDownload)
			downloads.GET("", videoHandler.ListDownloads)
			downloads.GET("/:id", videoHandler.GetDownload)
			downloads.POST("/:id/cancel", videoHandler.CancelDownload)
			downloads.GET("/:id/progress", progressHandler.HandleWebSocket)
		}

		cacheHandler := handlers.NewCacheHandler(framework.Cache)
		cache := v1.Group("/cache")
		{
			cache.GET("/stats", cacheHandler.Stats)
			cache.POST("/invalidate", cacheHandler.Invalidate)
		}
	}

	return router
}
