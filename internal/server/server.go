// Package server provides the HTTP viewer for tapeview.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/tapeview/internal/catalog"
	"github.com/hyperjump/tapeview/internal/config"
	"github.com/hyperjump/tapeview/internal/models"
	"github.com/hyperjump/tapeview/internal/storage"
	"github.com/hyperjump/tapeview/internal/viewer"
	"go.uber.org/zap"
)

// Searcher searches saved listings.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, opts *catalog.SearchOptions) ([]models.CatalogHit, error)
}

// Server is the HTTP server for one viewer session.
type Server struct {
	viewer  *viewer.Viewer
	history storage.History
	catalog Searcher
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server. history and catalog may be nil; their endpoints
// then answer 501.
func NewServer(
	v *viewer.Viewer,
	history storage.History,
	catalog Searcher,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		viewer:  v,
		history: history,
		catalog: catalog,
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Put("/mode", s.handleSetMode)
		r.Put("/charset", s.handleSetCharset)
		r.Post("/input", s.handleUpload)
		r.Delete("/input", s.handleClear)
		r.Post("/fetch", s.handleFetch)
		r.Post("/save", s.handleSave)
		r.Get("/download", s.handleDownload)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleHistoryEntry)
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("viewer", s.viewer.Profile().Kind))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
