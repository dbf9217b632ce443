// Package api provides the HTTP REST API and WebSocket server for the device catalog.
//
// The server follows the same lifecycle pattern as other infrastructure components:
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
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/classify"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/source"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/update"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
	"github.com/nerrad567/gray-logic-catalog/internal/history"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Updater runs update cycles. It is satisfied by *update.Orchestrator.
type Updater interface {
	UpdateAll(ctx context.Context, opts update.Options) *update.Report
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Corpus      *device.Corpus
	Schema      *schema.Database
	Sources     *source.Registry
	Classifier  *classify.Classifier // defaults to classify.Default()
	Updater     Updater              // optional: POST /update returns 503 without it
	Reports     history.Repository   // optional: /reports returns 503 without it
	ExternalHub *Hub                 // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the device catalog.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	corpus      *device.Corpus
	schema      *schema.Database
	sources     *source.Registry
	classifier  *classify.Classifier
	updater     Updater
	reports     history.Repository
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool // true if hub was injected externally

	// ctx bounds update cycles started by POST /update without wait.
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Corpus == nil {
		return nil, fmt.Errorf("device corpus is required")
	}
	if deps.Schema == nil {
		return nil, fmt.Errorf("schema database is required")
	}
	if deps.Sources == nil {
		return nil, fmt.Errorf("source registry is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		corpus:     deps.Corpus,
		schema:     deps.Schema,
		sources:    deps.Sources,
		classifier: deps.Classifier,
		updater:    deps.Updater,
		reports:    deps.Reports,
		version:    deps.Version,
	}
	if s.classifier == nil {
		s.classifier = classify.Default()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// The orchestrator is usually built before the server and needs the
	// hub as a notifier, so main creates it up front.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the server's WebSocket hub, or nil before Start when no
// hub was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(s.ctx)
	}

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
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then for
// any update cycle started through the API to observe cancellation.
func (s *Server) Close() error {
	s.cancel()
	defer s.bg.Wait()

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
