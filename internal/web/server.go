package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/engine"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/ports"
	"github.com/emiliopalmerini/splitlab/internal/shared/middleware"
)

//go:embed static/*
var staticFiles embed.FS

// Service is the engine surface the HTTP layer needs. *engine.Engine
// satisfies it.
type Service interface {
	CreateExperiment(ctx context.Context, cfg domain.ExperimentConfig) (*domain.Experiment, error)
	GetExperiment(ctx context.Context, id string) (*domain.Experiment, error)
	ListExperiments(ctx context.Context, filter domain.ExperimentFilter) ([]*domain.Experiment, error)
	StartExperiment(ctx context.Context, id string) (*domain.Experiment, error)
	StopExperiment(ctx context.Context, id, reason string) (*domain.Experiment, error)
	CompleteExperiment(ctx context.Context, id, reason string) (*domain.Experiment, error)
	GetAssignment(ctx context.Context, experimentID, entityID string) (engine.AssignmentResult, error)
	ListAssignments(ctx context.Context, experimentID, afterEntityID string, limit int) ([]*domain.Assignment, error)
	TrackEvent(ctx context.Context, in engine.TrackEventInput) (engine.Ack, error)
	GetResults(ctx context.Context, experimentID string) (*engine.Results, error)
}

type Server struct {
	service         Service
	logger          ports.Logger
	router          *http.ServeMux
	handler         http.Handler
	addr            string
	shutdownTimeout time.Duration
}

func NewServer(service Service, logger ports.Logger, cfg config.Server) *Server {
	s := &Server{
		service:         service,
		logger:          logger,
		router:          http.NewServeMux(),
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}
	s.setupRoutes()
	s.handler = middleware.Chain(s.router, middleware.Recover(logger), middleware.Logging(logger))
	return s
}

func (s *Server) setupRoutes() {
	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static filesystem: %v", err))
	}
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Health check
	s.router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Pages
	s.router.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/experiments", http.StatusFound)
	})
	s.router.HandleFunc("GET /experiments", s.handleExperiments)
	s.router.HandleFunc("GET /experiments/{id}", s.handleExperimentDetail)

	// JSON API
	s.router.HandleFunc("POST /api/experiments", s.handleAPICreateExperiment)
	s.router.HandleFunc("GET /api/experiments", s.handleAPIListExperiments)
	s.router.HandleFunc("GET /api/experiments/{id}", s.handleAPIGetExperiment)
	s.router.HandleFunc("POST /api/experiments/{id}/start", s.handleAPIStartExperiment)
	s.router.HandleFunc("POST /api/experiments/{id}/stop", s.handleAPIStopExperiment)
	s.router.HandleFunc("POST /api/experiments/{id}/complete", s.handleAPICompleteExperiment)
	s.router.HandleFunc("GET /api/experiments/{id}/results", s.handleAPIResults)
	s.router.HandleFunc("POST /api/experiments/{id}/assignments", s.handleAPIAssign)
	s.router.HandleFunc("GET /api/experiments/{id}/assignments", s.handleAPIListAssignments)
	s.router.HandleFunc("POST /api/experiments/{id}/events", s.handleAPITrackEvent)
}

// Handler returns the router wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.logger.Info("http server stopped")
		return nil
	})
	return g.Wait()
}
