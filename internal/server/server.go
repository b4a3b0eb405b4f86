// Package server provides the HTTP server and routing for the optimizer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/reachplan/optimizer/internal/config"
	"github.com/reachplan/optimizer/internal/database"
	"github.com/reachplan/optimizer/internal/events"
	curveshandlers "github.com/reachplan/optimizer/internal/modules/curves/handlers"
	financehandlers "github.com/reachplan/optimizer/internal/modules/finance/handlers"
	recommendationhandlers "github.com/reachplan/optimizer/internal/modules/recommendation/handlers"
)

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	InputsDB       *database.DB
	ResultsDB      *database.DB
	Config         *config.Config
	Port           int
	DevMode        bool
	EventBus       *events.Bus
	Recommendation *recommendationhandlers.Handler
	Curves         *curveshandlers.Handler
	Finance        *financehandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	inputsDB       *database.DB
	resultsDB      *database.DB
	cfg            *config.Config
	eventBus       *events.Bus
	recommendation *recommendationhandlers.Handler
	curves         *curveshandlers.Handler
	finance        *financehandlers.Handler
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		inputsDB:       cfg.InputsDB,
		resultsDB:      cfg.ResultsDB,
		cfg:            cfg.Config,
		eventBus:       cfg.EventBus,
		recommendation: cfg.Recommendation,
		curves:         cfg.Curves,
		finance:        cfg.Finance,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.InputsDB, cfg.ResultsDB),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout. Long enough for synchronous solves; async runs detach from
	// the request anyway.
	s.router.Use(middleware.Timeout(15 * time.Minute))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Run lifecycle event stream (websocket); registered first so the
		// upgrade is not shadowed by other routes.
		eventsStream := NewEventsStreamHandler(s.eventBus, s.log)
		r.Get("/events/stream", eventsStream.ServeHTTP)

		// Recommendation runs
		s.recommendation.RegisterRoutes(r)

		// Input data upload and inspection
		s.curves.RegisterRoutes(r)
		s.finance.RegisterRoutes(r)

		// System monitoring
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		r.Get("/system/databases", s.systemHandlers.HandleDatabaseStats)
		r.Get("/system/disk", s.systemHandlers.HandleDiskUsage)
	})
}

// handleHealth reports process liveness plus database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.inputsDB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := s.resultsDB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":%q}`, status)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
