// Package api provides the HTTP REST API and WebSocket event stream for
// the Shelly monitoring backend.
//
// It exposes login and user management, the board/room/device hierarchy,
// adapter passthrough endpoints, and a WebSocket stream of deviceUpdate
// events to the dashboard frontend.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
	"github.com/damianarielmauro/Shelly-App/internal/device"
	"github.com/damianarielmauro/Shelly-App/internal/events"
	"github.com/damianarielmauro/Shelly-App/internal/hierarchy"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
	"github.com/damianarielmauro/Shelly-App/internal/shelly"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Users      auth.UserRepository
	RoomAccess auth.RoomAccessRepository
	Hierarchy  hierarchy.Repository
	Devices    device.Repository
	Adapter    *shelly.Client
	Monitor    *shelly.Monitor // optional: live power readings for statistics
	Bus        *events.Bus
	Version    string
}

// Server is the HTTP API server for the Shelly monitoring backend.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket hub
// that relays bus events to connected dashboards. The server is created
// with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	users      auth.UserRepository
	roomAccess auth.RoomAccessRepository
	boards     hierarchy.Repository
	devices    device.Repository
	adapter    *shelly.Client
	monitor    *shelly.Monitor
	bus        *events.Bus
	version    string
	server     *http.Server
	hub        *Hub
	busSub     int                // bus subscription handle, released on Close()
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil || deps.RoomAccess == nil {
		return nil, fmt.Errorf("auth repositories are required")
	}
	if deps.Hierarchy == nil {
		return nil, fmt.Errorf("hierarchy repository is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Adapter == nil {
		return nil, fmt.Errorf("adapter client is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		users:      deps.Users,
		roomAccess: deps.RoomAccess,
		boards:     deps.Hierarchy,
		devices:    deps.Devices,
		adapter:    deps.Adapter,
		monitor:    deps.Monitor,
		bus:        deps.Bus,
		version:    deps.Version,
		busSub:     -1,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, bridges bus events to
// connected WebSocket clients, and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Relay every bus event to WebSocket clients
	s.busSub = s.bus.Subscribe(func(e events.Event) {
		s.hub.Broadcast(e.Type, e.Payload)
	})

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.busSub >= 0 {
		s.bus.Unsubscribe(s.busSub)
	}

	// Cancel background goroutines (hub)
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

// HealthCheck verifies the API server is running and responsive.
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
