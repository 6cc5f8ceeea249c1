// Package server provides the HTTP boundary for vendor resolution.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/vendor-lens/internal/resolver"
	"github.com/Veraticus/vendor-lens/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the vendor resolution API.
type Server struct {
	engine *resolver.Engine
	store  service.MappingStore
	auth   Authenticator
	logger *slog.Logger
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(engine *resolver.Engine, store service.MappingStore, auth Authenticator, logger *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		auth:   auth,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(s.recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// setupRoutes configures all HTTP routes. Every route requires an
// authenticated caller.
func (s *Server) setupRoutes() {
	s.router.Route("/vendors", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/resolve", s.handleResolve)
		r.Post("/resolve/batch", s.handleResolveBatch)

		r.Get("/mappings", s.handleListMappings)
		r.Post("/mappings", s.handleCreateMapping)
		r.Patch("/mappings/{id}", s.handleUpdateMapping)
		r.Delete("/mappings/{id}", s.handleDeleteMapping)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLogger logs each request with its outcome via slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// recoverer converts panics into the standard error envelope so the
// response shape holds even for unexpected failures.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				s.logger.Error("panic in handler",
					"panic", rvr,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()))
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
