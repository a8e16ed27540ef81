package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtoys/internal/sse"
)

type EventsHandler struct {
	hub    *sse.Hub
	logger *zap.Logger
}

func NewEventsHandler(hub *sse.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream serves GET /api/events as a text/event-stream. Frames are written as
// they arrive; the connection ends when the client goes away. There is no
// backlog, reconnecting clients re-fetch state over the REST endpoints.
func (h *EventsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	frame, err := sse.Frame(sse.Event{
		Type: sse.EventConnected,
		Data: gin.H{"message": "SSE connection established"},
	})
	if err == nil {
		if _, err := c.Writer.Write(frame); err != nil {
			return
		}
		flusher.Flush()
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
