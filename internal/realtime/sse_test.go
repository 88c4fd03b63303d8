// file: internal/realtime/sse_test.go
// version: 1.1.0
// guid: a0ed8466-41c6-48df-924b-b3a777a3dd0a

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/playlist-archiver/internal/models"
)

func sseRouter(hub *Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/events", hub.HandleSSE(func(token string) (string, error) {
		if token == "valid" {
			return "admin", nil
		}
		return "", fmt.Errorf("bad token")
	}))
	return router
}

func TestHandleSSERejectsBadToken(t *testing.T) {
	hub := NewHub(func() []models.Video { return nil }, time.Millisecond)
	router := sseRouter(hub)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?token=wrong", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: %d, want 401", w.Code)
	}
	if hub.Count() != 0 {
		t.Errorf("rejected request left a subscriber behind")
	}
}

func TestHandleSSEStreamsSnapshotThenUpdate(t *testing.T) {
	state := []models.Video{{ID: "a", Status: models.StatusCategorized}}
	hub := NewHub(func() []models.Video { return state }, time.Millisecond)
	router := sseRouter(hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events?token=valid", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	// Wait for the subscriber to register, publish one delta, then let
	// the batch window flush before tearing the connection down.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	hub.Publish(models.Video{ID: "b", Status: models.StatusFetched})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	snapshotIdx := strings.Index(body, "event: snapshot")
	updateIdx := strings.Index(body, "event: update")
	if snapshotIdx < 0 {
		t.Fatalf("no snapshot event in stream:\n%s", body)
	}
	if updateIdx < 0 {
		t.Fatalf("no update event in stream:\n%s", body)
	}
	if snapshotIdx > updateIdx {
		t.Error("update delivered before snapshot")
	}
	if !strings.Contains(body, `"video_id":"a"`) {
		t.Errorf("snapshot payload missing store state:\n%s", body)
	}
}
