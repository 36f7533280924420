package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/beeper-core/internal/credentials"
	"github.com/nerrad567/beeper-core/internal/infrastructure/config"
	"github.com/nerrad567/beeper-core/internal/infrastructure/logging"
)

// Timeouts for the portal HTTP server. Requests are tiny form posts from a
// phone on the local AP, so these are short.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second

	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 5 * time.Second
)

// Restarter triggers a device restart after credentials are saved.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Deps holds the dependencies required by the portal server.
type Deps struct {
	Config config.PortalConfig
	Logger *logging.Logger
	Store  credentials.Store
	Power  Restarter
}

// Server is the provisioning HTTP server.
//
// It manages the HTTP listener, routes and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg    config.PortalConfig
	logger *logging.Logger
	store  credentials.Store
	power  Restarter

	server  *http.Server
	cancel  context.CancelFunc
	baseCtx context.Context
}

// New creates a new portal server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, store, power)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if deps.Power == nil {
		return nil, fmt.Errorf("restarter is required")
	}

	return &Server{
		cfg:    deps.Config,
		logger: deps.Logger,
		store:  deps.Store,
		power:  deps.Power,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; the server is stopped with
// Close().
//
// Parameters:
//   - ctx: Context for cancellation of the pending-restart goroutine
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		s.logger.Info("provisioning portal listening", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("portal server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the portal server.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("portal server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down portal server: %w", err)
	}
	return nil
}
