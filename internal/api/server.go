package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/sgloader/pkg/config"
	"github.com/wonny/sgloader/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API server settings live in this file
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server.
// Loader triggers drive a browser synchronously, so the write timeout
// covers a full scrape with retries.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	writeTimeout := time.Duration(cfg.Browser.MaxRetries+1)*cfg.Browser.PageTimeout + 30*time.Second
	if writeTimeout < 15*time.Second {
		writeTimeout = 15 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
		config: cfg,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port": s.config.Port,
		"env":  s.config.Env,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
