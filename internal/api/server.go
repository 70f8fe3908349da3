package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"splicer/internal/config"
	"splicer/internal/jobs"
	"splicer/internal/logging"
	"splicer/internal/runner"
)

// Service is the job-execution surface the server exposes.
type Service interface {
	SubmitChunk(ctx context.Context, in runner.ChunkInput) (*jobs.Job, error)
	SubmitStitch(ctx context.Context, in runner.StitchInput) (*jobs.Job, error)
	AudioDuration(ctx context.Context, url string) (int64, error)
	Capabilities(ctx context.Context) (bool, string)
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Bind         string
	Token        string
	Backend      string
	ArtifactsDir string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ServerOptionsFromConfig derives server options from cfg.
func ServerOptionsFromConfig(cfg *config.Config) ServerOptions {
	opts := ServerOptions{
		Bind:         cfg.Server.Bind,
		Token:        cfg.Server.APIToken,
		Backend:      cfg.Sandbox.Backend,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	if cfg.Storage.Backend == config.StorageBackendFilesystem {
		opts.ArtifactsDir = cfg.Storage.Dir
	}
	return opts
}

// Server is the HTTP API.
type Server struct {
	opts   ServerOptions
	svc    Service
	store  jobs.Store
	logger *slog.Logger

	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// NewServer builds the router.
func NewServer(opts ServerOptions, svc Service, store jobs.Store, logger *slog.Logger) *Server {
	s := &Server{
		opts:   opts,
		svc:    svc,
		store:  store,
		logger: logging.NewComponentLogger(logger, "api"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if dir := strings.TrimSpace(s.opts.ArtifactsDir); dir != "" {
		r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(dir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(s.opts.Token))
		r.Post("/jobs/chunk", s.handleSubmitChunk)
		r.Post("/jobs/stitch", s.handleSubmitStitch)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/audio/duration", s.handleDuration)
		r.Get("/capabilities", s.handleCapabilities)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
