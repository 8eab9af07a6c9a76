// Package api serves stored match results and refresh controls over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmylchreest/matchscrape/internal/job"
	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/internal/results"
)

// Default server timeouts.
const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 10 * time.Minute // POST /api/refresh waits for the scrape
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Config holds server settings.
type Config struct {
	Addr            string
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}

// Refresher runs a scrape on demand and reports its state.
type Refresher interface {
	Run(ctx context.Context, trigger string) (job.Outcome, error)
	State() job.State
}

// Schedule reports when the next automatic refreshes happen.
type Schedule interface {
	Next() (cronNext, intervalNext time.Time)
	Schedule() job.Schedule
}

// Deps are the collaborators the handlers read from.
type Deps struct {
	Store     *results.Store
	Refresher Refresher
	Schedule  Schedule            // optional
	Gatherer  prometheus.Gatherer // nil uses the default registry
}

// Server is the HTTP server with lifecycle management.
type Server struct {
	router *gin.Engine
	server *http.Server
	config Config
}

// NewServer builds the router and the http.Server.
func NewServer(cfg Config, deps Deps) *Server {
	cfg.SetDefaults()
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := NewRouter(deps)
	return &Server{
		router: router,
		config: cfg,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

// Start serves until the server is shut down.
func (s *Server) Start() error {
	logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting up to the configured timeout for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
