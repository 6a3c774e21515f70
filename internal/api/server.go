// Package api provides the HTTP REST API and WebSocket server for Herp Keeper.
//
// It exposes account and profile management, collection sub-resource CRUD
// (locations, species, animals, images), and real-time profile update
// delivery over WebSocket to keeper UIs (web and mobile apps).
//
// The server follows the same lifecycle pattern as the infrastructure
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

	"github.com/gorilla/websocket"

	"github.com/herpkeeper/herpkeeper-core/internal/animal"
	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/image"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/influxdb"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/location"
	"github.com/herpkeeper/herpkeeper-core/internal/profile"
	"github.com/herpkeeper/herpkeeper-core/internal/species"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// tokenCleanupInterval is how often expired refresh tokens are purged.
const tokenCleanupInterval = time.Hour

// ProfileNotifier announces profile-affecting writes to the event bus.
// This allows handlers to fire notifications without depending on the
// concrete messaging publisher.
type ProfileNotifier interface {
	ProfileUpdated(profileID, username string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Profiles   profile.Repository
	Tokens     auth.TokenRepository
	Locations  location.Repository
	Species    species.Repository
	Animals    animal.Repository
	Images     image.Repository
	ImageStore *image.Store     // nil disables image payload endpoints
	Influx     *influxdb.Client // nil disables feeding telemetry
	Notifier   ProfileNotifier
	Hub        *Hub // If set, the server uses this hub instead of creating its own
	Version    string
}

// Server is the HTTP API server for Herp Keeper.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	profiles   profile.Repository
	tokens     auth.TokenRepository
	locations  location.Repository
	species    species.Repository
	animals    animal.Repository
	images     image.Repository
	imageStore *image.Store
	influx     *influxdb.Client
	notifier   ProfileNotifier
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, repositories, notifier)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile repository is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token repository is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		profiles:   deps.Profiles,
		tokens:     deps.Tokens,
		locations:  deps.Locations,
		species:    deps.Species,
		animals:    deps.Animals,
		images:     deps.Images,
		imageStore: deps.ImageStore,
		influx:     deps.Influx,
		notifier:   deps.Notifier,
		version:    deps.Version,
		hub:        deps.Hub,
	}

	return s, nil
}

// Hub returns the server's WebSocket hub. It is nil until Start() is called
// unless a hub was injected through Deps.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, launches the expired-token sweeper, and
// starts the HTTP listener in a background goroutine. The server can be
// stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.secCfg.JWT.Secret, s.logger)
	}
	if err := s.hub.Start(); err != nil {
		return fmt.Errorf("starting websocket hub: %w", err)
	}

	// Purge expired refresh tokens periodically so the table stays small
	go s.cleanTokensLoop(srvCtx)

	router := s.buildRouter()

	// Any WebSocket upgrade request bypasses the router and goes straight
	// to the hub, which enforces the upgrade path prefix itself.
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			s.hub.AcceptUpgrade(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           root,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
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
// It stops the WebSocket hub, waits up to 10 seconds for in-flight requests
// to complete, then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (token sweeper)
	if s.cancel != nil {
		s.cancel()
	}

	if s.hub != nil {
		if err := s.hub.Stop(); err != nil {
			s.logger.Warn("stopping websocket hub", "error", err)
		}
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
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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

// cleanTokensLoop purges expired refresh tokens periodically until the
// context is cancelled.
func (s *Server) cleanTokensLoop(ctx context.Context) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.tokens.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn("purging expired refresh tokens", "error", err)
				continue
			}
			if count > 0 {
				s.logger.Debug("purged expired refresh tokens", "count", count)
			}
		}
	}
}
