package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/vid-extract-go/internal/app"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	framework *app.FrameworkContext
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(framework *app.FrameworkContext) *HealthHandler {
	return &HealthHandler{
		framework: framework,
		startedAt: time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"platforms":      h.framework.Registry.Platforms(),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
