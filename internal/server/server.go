// Package server exposes the pipeline and leaderboard over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sustainops/carbon-ranker/internal/engine"
	"github.com/sustainops/carbon-ranker/internal/service"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// WebAPI is the HTTP front end over the storage and engine.
type WebAPI struct {
	router          *chi.Mux
	server          *http.Server
	shutdownTimeout time.Duration
}

// New creates the web API with all routes registered.
func New(cfg Config, storage service.Storage, eng *engine.Engine) *WebAPI {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	h := newHandler(storage, eng)

	router := chi.NewRouter()
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Post("/process", h.process)
		r.Get("/leaderboard", h.leaderboard)
		r.Get("/company/{vendor}", h.company)
		r.Get("/metrics/summary", h.metricsSummary)
		r.Get("/processing/status", h.processingStatus)
		r.Post("/reset", h.reset)
	})

	return &WebAPI{
		router:          router,
		shutdownTimeout: cfg.ShutdownTimeout,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Router exposes the mux for tests.
func (w *WebAPI) Router() http.Handler {
	return w.router
}

// Start runs the server until it fails or a shutdown signal arrives.
func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Starting API server", "addr", w.server.Addr)
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		slog.Info("Shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		if err := w.server.Shutdown(ctx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			return w.server.Close()
		}
	}

	return nil
}

// requestLogger logs each request with method, path, status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
