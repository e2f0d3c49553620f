package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamNotifications handles GET /api/rt/notifications/:userId. It keeps
// the response open, writes one ready frame, then relays fan-out events as
// SSE data frames interleaved with comment heartbeats until the client
// disconnects.
func (h *Hub) StreamNotifications(c *gin.Context) {
	raw := c.Param("userId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if raw == "" || err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "userId path parameter is required",
		})
		return
	}
	recipientID := uint(id)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering so frames reach the client immediately.
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	conn := NewConn(h.buffer)
	h.Register(recipientID, conn)
	defer h.Unregister(recipientID, conn)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnect, proxy timeout or server shutdown.
			return
		case ev := <-conn.Events():
			if err := writeEvent(c.Writer, ev); err != nil {
				// Skip this frame; cleanup comes from ctx.Done().
				continue
			}
			c.Writer.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": keep-alive\n\n"); err != nil {
				continue
			}
			c.Writer.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
