// file: internal/server/server.go
// version: 1.3.0
// guid: 2d331b81-d160-4e2a-8540-e418e80d5193

// Package server exposes the HTTP surface: credential issuance, manual
// pipeline commands, the live SSE stream and file previews.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/playlist-archiver/internal/auth"
	"github.com/jdfalk/playlist-archiver/internal/library"
	"github.com/jdfalk/playlist-archiver/internal/metrics"
	"github.com/jdfalk/playlist-archiver/internal/models"
	"github.com/jdfalk/playlist-archiver/internal/realtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commands is the server's view of the pipeline's manual operations.
type Commands interface {
	OverrideQuery(ctx context.Context, id string, query *models.SearchQuery) error
	OverrideResult(ctx context.Context, id string, result *models.Metadata) error
	RetryFetch(ctx context.Context, id string) error
	Delete(id string) error
	Reindex(ids []string)
	TriggerSync()
	LocateFile(id string) (string, bool)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	gate       *auth.Gate
	cmds       Commands
	store      *library.Store
	hub        *realtime.Hub
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// New creates a new server instance
func New(gate *auth.Gate, cmds Commands, store *library.Store, hub *realtime.Hub) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())

	// Register metrics (idempotent)
	metrics.Register()

	s := &Server{
		router: router,
		gate:   gate,
		cmds:   cmds,
		store:  store,
		hub:    hub,
	}
	s.setupRoutes()
	return s
}

// Start starts the HTTP server without blocking.
func (s *Server) Start(cfg Config) {
	if cfg.ReadTimeout <= 0 {
		// SSE responses stay open indefinitely; only bound the read side.
		cfg.ReadTimeout = 30 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
}

// Stop shuts the server down, giving outstanding requests a deadline.
func (s *Server) Stop() error {
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/api/health", s.healthCheck)

	// Real-time events (SSE); the token rides in the query string since
	// EventSource cannot set headers.
	s.router.GET("/api/events", s.hub.HandleSSE(s.gate.Verify))

	s.router.POST("/login", s.login)
	s.router.GET("/video/:id/preview", s.preview)

	authed := s.router.Group("/")
	authed.Use(s.gate.RequireAuth())
	{
		authed.POST("/login/check", s.loginCheck)
		authed.POST("/trigger_sync", s.triggerSync)
		authed.POST("/reindex", s.reindex)
		authed.POST("/video/:id/query", s.overrideQuery)
		authed.POST("/video/:id/result", s.overrideResult)
		authed.POST("/video/:id/retry_fetch", s.retryFetch)
		authed.POST("/video/:id/delete", s.deleteVideo)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"videos": len(s.store.List()),
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
