// file: internal/realtime/sse.go
// version: 1.2.0
// guid: 2a02dacc-92f3-4181-af38-7a6b789ba9f9

package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// heartbeatInterval keeps proxies from reaping idle SSE connections.
const heartbeatInterval = 15 * time.Second

// VerifyToken checks a bearer credential and returns the subject.
type VerifyToken func(token string) (string, error)

// HandleSSE upgrades the request to a Server-Sent Events stream. The
// client unlocks delta delivery by presenting its token as the `token`
// query parameter (EventSource cannot set headers) or a normal
// Authorization header. One full snapshot is sent on unlock, then
// coalesced delta batches.
func (h *Hub) HandleSSE(verify VerifyToken) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = bearerToken(c.Request)
		}
		if _, err := verify(token); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache, no-transform")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		sub := h.Subscribe()
		defer h.Unsubscribe(sub.ID)

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				log.Printf("Subscriber %s connection closed", sub.ID)
				return
			case batch, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeEvent(c, eventName(batch), batch); err != nil {
					log.Printf("Error writing to subscriber %s: %v", sub.ID, err)
					return
				}
			case <-ticker.C:
				if err := writeComment(c, "heartbeat"); err != nil {
					return
				}
			}
		}
	}
}

func eventName(batch Batch) string {
	if batch.Snapshot {
		return "snapshot"
	}
	return "update"
}

func writeEvent(c *gin.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func writeComment(c *gin.Context, text string) error {
	if _, err := fmt.Fprintf(c.Writer, ": %s\n\n", text); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
