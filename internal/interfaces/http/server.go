// Package http exposes the work-log and batch verification services over
// HTTP, and optionally serves the local backend as a REST API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/application/service"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RangeWriter stores backend-owned range groups
type RangeWriter interface {
	CreateRangeGroup(ctx context.Context, group *entity.RangeGroup) error
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

// Services groups what the server exposes. Backend and Ranges are only
// set when this instance owns the data; the /backend/v1 routes are
// registered only then.
type Services struct {
	WorkLogs      service.WorkLogService
	Verifications service.VerificationService
	Maintenance   service.MaintenanceService
	Audit         *service.AuditSubscriber
	Backend       port.Backend
	Ranges        RangeWriter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services.
// The gin mode is left to the caller.
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
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

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			s.logger.Error("HTTP request", append(kv, "error", c.Errors.String())...)
			return
		}
		s.logger.Info("HTTP request", kv...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", healthCheck)

	api := s.router.Group("/api")
	if s.services.WorkLogs != nil {
		h := newWorkLogHandlers(s.services.WorkLogs, s.logger)
		eq := api.Group("/equipment/:id")
		{
			eq.POST("/worklog/load", h.Load)
			eq.GET("/entries", h.ListEntries)
			eq.POST("/entries", h.AddDraft)
			eq.PATCH("/entries/:ref", h.UpdateField)
			eq.POST("/entries/:ref/save", h.Save)
			eq.DELETE("/entries/:ref", h.Delete)
			eq.POST("/entries/generate", h.Generate)
			eq.POST("/entries/submit-all", h.SubmitAll)
			eq.GET("/calendar", h.Calendar)
			eq.GET("/matrix", h.Matrix)
			eq.PUT("/matrix/cells", h.WriteCell)
			eq.GET("/matrix/export", h.Export)
		}
	}

	if s.services.Verifications != nil {
		h := newVerificationHandlers(s.services.Verifications, s.logger)
		api.POST("/verifications", h.Open)
		v := api.Group("/verifications/:sid")
		{
			v.GET("", h.Snapshot)
			v.DELETE("", h.Close)
			v.PUT("/batch", h.Enter)
			v.POST("/lookup", h.Lookup)
			v.GET("/form", h.Form)
			v.PATCH("/form", h.UpdateForm)
			v.DELETE("/form", h.CancelForm)
			v.POST("/submit", h.Submit)
			v.POST("/transactions", h.Create)
		}
	}

	if s.services.Maintenance != nil {
		api.POST("/maintenance", newMaintenanceHandler(s.services.Maintenance, s.logger))
	}
	if s.services.Audit != nil {
		audit := s.services.Audit
		api.GET("/events", func(c *gin.Context) {
			c.JSON(http.StatusOK, Response{Success: true, Data: audit.Recent()})
		})
	}

	if s.services.Backend != nil {
		registerBackendRoutes(s.router.Group("/backend/v1"), s.services.Backend, s.services.Ranges, s.logger)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
