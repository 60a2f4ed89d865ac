// Package http provides the HTTP adapter over the workflow engine.
// This is a thin layer that translates requests into engine operations;
// authentication is delegated to the fronting proxy.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shwehr/approval-engine/internal/application/engine"
	"github.com/shwehr/approval-engine/internal/application/port"
	"github.com/shwehr/approval-engine/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	engine     engine.Engine
	reports    service.ReportService
	clock      port.Clock
	logger     Logger
}

// NewServer creates a new HTTP server over the workflow engine
func NewServer(
	config ServerConfig,
	eng engine.Engine,
	reports service.ReportService,
	clock port.Clock,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:  config,
		router:  router,
		engine:  eng,
		reports: reports,
		clock:   clock,
		logger:  logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.engine, s.reports, s.clock, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		workflows := api.Group("/workflows")
		{
			workflows.GET("", handlers.ListUserWorkflows)
			workflows.POST("/leave", handlers.CreateLeaveWorkflow)
			workflows.POST("/promotion", handlers.CreatePromotionWorkflow)
			workflows.POST("/transfer", handlers.CreateTransferWorkflow)

			workflows.GET("/:id", handlers.GetWorkflow)
			workflows.GET("/:id/progress", handlers.GetProgress)
			workflows.GET("/:id/report", handlers.ExportReport)

			workflows.POST("/:id/approve", handlers.Approve)
			workflows.POST("/:id/reject", handlers.Reject)
			workflows.POST("/:id/delegate", handlers.Delegate)
			workflows.POST("/:id/withdraw", handlers.Withdraw)
			workflows.POST("/:id/escalate", handlers.Escalate)
			workflows.POST("/:id/resume", handlers.Resume)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
