package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/vid-extract-go/internal/app"
)

// CacheHandler exposes cache statistics and invalidation
type CacheHandler struct {
	cache *app.ExtractionCache
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cache *app.ExtractionCache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// Stats handles GET /api/v1/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// InvalidateRequest names the entry to drop
type InvalidateRequest struct {
	URL       string `json:"url" binding:"required"`
	Operation string `json:"operation,omitempty"` // defaults to info
}

// Invalidate handles POST /api/v1/cache/invalidate
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	norm, err := app.NormalizeURL(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operation := req.Operation
	if operation == "" {
		operation = "info"
	}

	h.cache.Invalidate(app.CacheKey(norm, operation))
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}
