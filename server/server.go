// Copyright 2025 The wiki-rag authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the search, indexing, status, and space-browsing
// HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mishgancheg/wiki-rag/core"
	"github.com/mishgancheg/wiki-rag/ingestion"
	"github.com/mishgancheg/wiki-rag/source"
	"github.com/mishgancheg/wiki-rag/storage"
)

// Searcher answers ranked retrieval queries.
type Searcher interface {
	Search(ctx context.Context, query string, threshold float64, limit int) ([]core.RankedFragment, error)
}

// Indexer drives document ingestion and exposes its status registry.
type Indexer interface {
	IngestDocuments(ctx context.Context, pageIDs []string) ([]core.IngestReport, error)
	Registry() *ingestion.Registry
}

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Server is the HTTP surface over the retrieval engine, the ingestion
// coordinator, and the content source.
type Server struct {
	cfg        Config
	searcher   Searcher
	indexer    Indexer
	source     source.Source
	store      storage.Store
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New assembles the router and server.
func New(cfg Config, searcher Searcher, indexer Indexer, src source.Source, store storage.Store) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		cfg:      cfg,
		searcher: searcher,
		indexer:  indexer,
		source:   src,
		store:    store,
		logger:   slog.Default().With("component", "server"),
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/index", s.handleIndex)
		r.Get("/status", s.handleStatus)
		r.Get("/spaces", s.handleSpaces)
		r.Get("/spaces/{key}/pages", s.handleRootPages)
		r.Get("/pages/{id}/children", s.handleChildren)
	})
	return r
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(started))
	})
}
