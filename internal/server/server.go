// Package server exposes the redaction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/blackout/internal/cache"
	"github.com/raaihank/blackout/internal/config"
	"github.com/raaihank/blackout/internal/logger"
	"github.com/raaihank/blackout/internal/pipeline"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/raaihank/blackout/internal/store"
	"github.com/raaihank/blackout/internal/web"
	"github.com/raaihank/blackout/internal/websocket"
	"go.uber.org/zap"
)

// Processor runs the document pipeline on a saved upload
type Processor interface {
	Process(ctx context.Context, path string) (*pipeline.Outcome, error)
}

// JobLister exposes recorded jobs. store.JobStore implements it.
type JobLister interface {
	Recent(ctx context.Context, limit int) ([]store.Job, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Deps are the collaborators the server routes requests to. Engines and
// Pipeline are required.
type Deps struct {
	Engines  *redact.Holder
	Pipeline Processor
	Cache    cache.ResultCache
	Jobs     JobLister
	Hub      *websocket.Hub
	Version  string
}

// Server represents the HTTP API server
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	deps    Deps
	limiter *RateLimiter
	router  *mux.Router
	server  *http.Server
	started time.Time
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, log *logger.Logger) (*Server, error) {
	if deps.Engines == nil || deps.Engines.Current() == nil {
		return nil, errors.New("server needs a redaction engine")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("server needs a pipeline")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = websocket.NewHub(cfg.WebSocket, log.WithComponent("websocket").Logger)
	}

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		deps:    deps,
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	if cfg.Server.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs", s.handleJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/", web.ServeUpload).Methods(http.MethodGet)

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.wsPath(), s.deps.Hub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.NewRoute().Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.bodyLimitMiddleware)
	api.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/redact", s.handleRedact).Methods(http.MethodPost)
}

func (s *Server) wsPath() string {
	if s.config.WebSocket.Path != "" {
		return s.config.WebSocket.Path
	}
	return "/ws"
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub for broadcasting events
func (s *Server) Hub() *websocket.Hub {
	return s.deps.Hub
}

// Start runs the WebSocket hub and serves HTTP until Stop is called. The
// hub stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting blackout server",
		zap.Int("port", s.config.Server.Port),
		zap.String("upload_dir", s.config.Server.UploadDir),
		zap.Bool("websocket", s.config.WebSocket.Enabled),
		zap.Bool("rate_limit", s.limiter != nil),
	)

	go s.deps.Hub.Run(ctx)
	if s.limiter != nil {
		go s.sweepLimiter(ctx)
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Sweep(); n > 0 {
				s.logger.Debug("Rate limiter entries expired", zap.Int("removed", n))
			}
		}
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping blackout server")
	return s.server.Shutdown(ctx)
}
