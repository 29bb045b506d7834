package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/logging"
	"github.com/Fabulani/shopfloor-simulation/internal/scenario"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Manager *scenario.Manager
	Hub     *Hub

	// Channel and Topics publish operator control messages. Without a
	// channel the manager endpoint is read-only.
	Channel   channel.Channel
	Topics    channel.Topics
	ManagerID string

	// Events is optional; the control event endpoint answers 503 without it.
	Events controllog.Repository

	// Checks are run by the health endpoint, keyed by dependency name.
	Checks map[string]HealthCheck

	Version string
}

// Server is the admin HTTP server.
type Server struct {
	deps      Deps
	logger    *logging.Logger
	hub       *Hub
	server    *http.Server
	addr      string
	startTime time.Time
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("scenario manager is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		deps:      deps,
		logger:    deps.Logger,
		hub:       hub,
		startTime: time.Now(),
	}, nil
}

// Hub returns the live feed hub, for use as scenario telemetry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listen address and serves in the background. Bind
// failures are returned. Stop the server with Close.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.deps.Config
	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	var hubCtx context.Context
	hubCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(hubCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(cfg.Timeouts.Idle) * time.Second,
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Info("API server listening", "address", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
