package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/config"
	"github.com/srcfl/srcful-gateway-sub001/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Blackboard *blackboard.Blackboard
	Devices    *device.Factory

	// Schemes restricts the endpoint URLs POST /api/endpoints accepts.
	// Empty accepts any absolute URL.
	Schemes []string

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Health is reported by /health, keyed by component name.
	Health map[string]HealthChecker
}

// Server is the gateway HTTP API server.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	bb      *blackboard.Blackboard
	devices *device.Factory
	schemes map[string]bool
	metrics http.Handler
	health  map[string]HealthChecker

	server   *http.Server
	listener net.Listener
}

// New creates a new API server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Blackboard == nil {
		return nil, fmt.Errorf("blackboard is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device factory is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		bb:      deps.Blackboard,
		devices: deps.Devices,
		metrics: deps.Metrics,
		health:  deps.Health,
	}
	if len(deps.Schemes) > 0 {
		s.schemes = make(map[string]bool, len(deps.Schemes))
		for _, sc := range deps.Schemes {
			s.schemes[sc] = true
		}
	}
	return s, nil
}

// Handler returns the router. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in a background goroutine.
// Binding errors are returned; serve errors are logged.
func (s *Server) Start(context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.GetReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.GetWriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.GetIdleTimeout(),
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
