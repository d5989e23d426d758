// Package api exposes the review workflow over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
	"github.com/dharsanguruparan/InvoiceDesk/internal/config"
	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
	"github.com/dharsanguruparan/InvoiceDesk/internal/review"
)

// HealthChecker reports whether the extraction service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) bool
}

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Review   *review.Service
	Registry *attachment.Registry
	Dispatch processing.Dispatcher
	Gateway  HealthChecker
}

// Server exposes HTTP endpoints for invoice review.
type Server struct {
	cfg      *config.Config
	review   *review.Service
	registry *attachment.Registry
	dispatch processing.Dispatcher
	gateway  HealthChecker
	log      zerolog.Logger

	handler http.Handler
	server  *http.Server
	once    sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		review:   deps.Review,
		registry: deps.Registry,
		dispatch: deps.Dispatch,
		gateway:  deps.Gateway,
		log:      log,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() { s.handler = s.routes() })
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", s.cfg.Address).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/gateway/health", s.handleGatewayHealth)

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleUpload)
		r.Get("/stats", s.handleStats)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Patch("/", s.handlePatch)
			r.Delete("/", s.handleDelete)
			r.Put("/data", s.handleSaveForm)
			r.Put("/status", s.handleSetStatus)
			r.Put("/file", s.handleAttach)
			r.Post("/extract", s.handleExtract)
			r.Get("/preview", s.handlePreview)
			r.Get("/overlay", s.handleOverlay)
		})
	})
	r.Get("/jobs/{id}", s.handleJob)
	r.Get(attachment.ReferencePrefix+"{id}", s.handleAttachment)
	r.Delete(attachment.ReferencePrefix+"{id}", s.handleReleaseAttachment)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
