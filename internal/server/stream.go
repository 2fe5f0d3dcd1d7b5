package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamHeartbeatInterval = 25 * time.Second

type streamEventPayload struct {
	ProductIDs []string `json:"productIds,omitempty"`
	Timestamp  int64    `json:"timestamp_s"`
}

// handleProductStream serves the server-sent-events feed of product changes.
// EventSource cannot set an Authorization header, so the token rides in the
// access_token query parameter.
func (h *httpHandler) handleProductStream(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime_unavailable"})
		return
	}

	token := strings.TrimSpace(c.Query("access_token"))
	if token == "" {
		header := c.GetHeader("Authorization")
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if _, err := h.tokens.ValidateToken(token); err != nil {
		h.logger.Warn("stream token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cleanup := h.realtime.Subscribe(c.Request.Context())
	defer cleanup()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message, open := <-stream:
			if !open {
				return
			}
			if err := writeStreamEvent(c, flusher, message.EventType, streamEventPayload{
				ProductIDs: message.ProductIDs,
				Timestamp:  message.Timestamp.UTC().Unix(),
			}); err != nil {
				return
			}
		case tick := <-heartbeat.C:
			if err := writeStreamEvent(c, flusher, realtimeEventHeartbeat, streamEventPayload{
				Timestamp: tick.UTC().Unix(),
			}); err != nil {
				return
			}
		}
	}
}

func writeStreamEvent(c *gin.Context, flusher http.Flusher, eventType string, payload streamEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("event: " + eventType + "\n"); err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
