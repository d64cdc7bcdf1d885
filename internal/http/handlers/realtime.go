package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime"
)

const sseKeepAlive = 25 * time.Second

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/events streams the caller's session and job events as SSE.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	teacherID, ok := teacherFromContext(c)
	if !ok {
		return
	}
	client := h.hub.NewClient(teacherID)
	h.hub.AddChannel(client, teacherID.String())
	defer h.hub.CloseClient(client)
	h.log.Debug("event stream open", "teacher_id", teacherID, "client_id", client.ID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-client.Done():
			return false
		case msg, ok := <-client.Outbound:
			if !ok {
				return false
			}
			c.SSEvent(string(msg.Event), msg)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
	h.log.Debug("event stream closed", "teacher_id", teacherID, "client_id", client.ID)
}
