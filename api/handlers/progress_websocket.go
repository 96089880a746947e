package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ProgressWebSocketHandler streams download progress events over WebSocket
type ProgressWebSocketHandler struct {
	tracker *app.DownloadTracker
	logger  *zap.Logger
}

// NewProgressWebSocketHandler creates a new WebSocket handler
func NewProgressWebSocketHandler(tracker *app.DownloadTracker, logger *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// HandleWebSocket handles GET /api/v1/downloads/:id/progress
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")

	events, unsubscribe, err := h.tracker.Subscribe(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("Progress WebSocket client connected",
		zap.String("download_id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Send the current snapshot first so late subscribers see state
	if dl := h.tracker.Get(id); dl != nil {
		if err := conn.WriteJSON(dl); err != nil {
			return
		}
	}

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("Progress WebSocket client gone", zap.String("download_id", id))
			return
		}
	}
}
