// Package httpserver provides the HTTP REST API server for the scholar tools service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

// Service metadata reported by the root endpoint.
const (
	ServiceName        = "Semantic Scholar Tools API"
	ServiceVersion     = "0.1.0"
	ServiceDescription = "API for searching and retrieving academic papers from Semantic Scholar, arXiv and CORE"
)

// Recorder receives per-request search and lookup telemetry.
// *observability.Metrics satisfies it.
type Recorder interface {
	RecordSearchStarted(source string)
	RecordSearchCompleted(source string, paperCount int, durationSeconds float64)
	RecordSearchFailed(source, kind string, durationSeconds float64)
	RecordLookup(source, operation, outcome string, durationSeconds float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearchStarted(string)                   {}
func (nopRecorder) RecordSearchCompleted(string, int, float64)   {}
func (nopRecorder) RecordSearchFailed(string, string, float64)   {}
func (nopRecorder) RecordLookup(string, string, string, float64) {}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DefaultSearchSource is used by /api/search when no source is given.
	DefaultSearchSource domain.SourceType

	// DefaultLookupSource is used by /api/paper/{id} when no source is given.
	DefaultLookupSource domain.SourceType
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	registry   *papersources.Registry
	recorder   Recorder
	validate   *validator.Validate
	logger     zerolog.Logger
	config     Config
}

// NewServer creates a new HTTP server over the given source registry.
// A nil recorder disables request telemetry.
func NewServer(cfg Config, registry *papersources.Registry, recorder Recorder, logger zerolog.Logger) *Server {
	if cfg.DefaultSearchSource == "" {
		cfg.DefaultSearchSource = domain.SourceTypeSemanticScholar
	}
	if cfg.DefaultLookupSource == "" {
		cfg.DefaultLookupSource = domain.SourceTypeArXiv
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &Server{
		registry: registry,
		recorder: recorder,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http-server").Logger(),
		config:   cfg,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", s.rootHandler)
	r.Get("/health", s.healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.searchPapers)
		r.Get("/paper/*", s.getPaper)
		r.Get("/details", s.getPaperDetails)
		r.Get("/references", s.getPaperReferences)
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// rootHandler describes the service and its endpoints.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	enabled := s.registry.EnabledSources()
	sources := make([]string, 0, len(enabled))
	for _, src := range enabled {
		sources = append(sources, string(src.SourceType()))
	}

	writeJSON(w, http.StatusOK, rootResponse{
		Name:        ServiceName,
		Version:     ServiceVersion,
		Description: ServiceDescription,
		Endpoints: map[string]string{
			"search":     "/api/search",
			"paper":      "/api/paper/{id}",
			"details":    "/api/details",
			"references": "/api/references",
			"health":     "/health",
		},
		Sources: sources,
	})
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
