// Package server provides the HTTP API for docqa.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/indexer"
	"github.com/hyperjump/docqa/internal/rag"
	"github.com/hyperjump/docqa/internal/search"
	"github.com/hyperjump/docqa/pkg/utils"
)

const requestTimeout = 60 * time.Second

// Server is the HTTP server for the docqa API.
type Server struct {
	engine   *rag.Engine
	indexer  *indexer.Indexer
	searcher *search.Engine
	config   *config.ServerConfig
	logger   *zap.Logger
	limiter  *rate.Limiter
	server   *http.Server
}

// NewServer creates a server with the given dependencies. searcher may be nil, which disables
// passage search.
func NewServer(
	engine *rag.Engine,
	idx *indexer.Indexer,
	searcher *search.Engine,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engine:   engine,
		indexer:  idx,
		searcher: searcher,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

// Handler returns the API router. Streaming answers are kept out of the timeout group so long
// generations are bounded by the client connection instead.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.Compress(5))
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/search", s.handleSearch)
		r.Delete("/api/corpus", s.handleClear)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/api/upload", s.handleUpload)
		r.Post("/api/ask", s.handleAsk)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// rateLimit rejects requests with 429 once the shared limiter is exhausted.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.respondError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)))
	})
}
