package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/app"
	"github.com/yourusername/vid-extract-go/internal/domain"
)

// VideoHandler exposes the platform handler framework over HTTP
type VideoHandler struct {
	framework *app.FrameworkContext
	logger    *zap.Logger
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(framework *app.FrameworkContext, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{
		framework: framework,
		logger:    logger,
	}
}

// ResolveRequest asks which platform serves a URL
type ResolveRequest struct {
	URL string `json:"url" binding:"required"`
}

// Resolve handles POST /api/v1/resolve
func (h *VideoHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handler, err := h.framework.Registry.Resolve(req.URL)
	if err != nil {
		writeClassifiedError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"platform":     handler.PlatformID(),
		"capabilities": handler.GetCapabilities(),
	})
}

// InfoRequest asks for metadata of a URL
type InfoRequest struct {
	URL string `json:"url" binding:"required"`
}

// GetVideoInfo handles POST /api/v1/videos/info
func (h *VideoHandler) GetVideoInfo(c *gin.Context) {
	var req InfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handler, err := h.framework.Registry.Resolve(req.URL)
	if err != nil {
		writeClassifiedError(c, err)
		return
	}

	info, err := handler.GetVideoInfo(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Warn("Video info extraction failed",
			zap.String("url", req.URL), zap.Error(err))
		writeClassifiedError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// AddDownloadRequest starts a tracked download
type AddDownloadRequest struct {
	URL     string `json:"url" binding:"required"`
	Quality string `json:"quality,omitempty"`
}

// AddDownload handles POST /api/v1/downloads
func (h *VideoHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handler, err := h.framework.Registry.Resolve(req.URL)
	if err != nil {
		writeClassifiedError(c, err)
		return
	}

	dl := h.framework.Tracker.Start(c.Request.Context(), handler, req.URL, req.Quality)
	h.logger.Info("Download started",
		zap.String("id", dl.ID),
		zap.String("url", req.URL),
		zap.String("platform", string(dl.Platform)))

	c.JSON(http.StatusCreated, dl)
}

// ListDownloads handles GET /api/v1/downloads
func (h *VideoHandler) ListDownloads(c *gin.Context) {
	c.JSON(http.StatusOK, h.framework.Tracker.List())
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *VideoHandler) GetDownload(c *gin.Context) {
	dl := h.framework.Tracker.Get(c.Param("id"))
	if dl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}
	c.JSON(http.StatusOK, dl)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *VideoHandler) CancelDownload(c *gin.Context) {
	if err := h.framework.Tracker.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// writeClassifiedError maps framework errors onto HTTP responses, carrying
// the error context through so the UI can render actionable guidance
func writeClassifiedError(c *gin.Context, err error) {
	var notSupported *domain.NotSupportedError
	if errors.As(err, &notSupported) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": notSupported.Error()})
		return
	}

	var ce *domain.ClassifiedError
	if !errors.As(err, &ce) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch ce.Context.Category {
	case domain.CategoryValidation:
		status = http.StatusBadRequest
	case domain.CategoryContentUnavailable:
		status = http.StatusNotFound
	case domain.CategoryRateLimited:
		status = http.StatusTooManyRequests
		if ce.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(ce.RetryAfter.Seconds())))
		}
	case domain.CategoryNetwork:
		status = http.StatusBadGateway
	case domain.CategorySystem:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{
		"error":   ce.Error(),
		"context": ce.Context,
	})
}
