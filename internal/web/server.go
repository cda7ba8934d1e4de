// Package web provides the HTTP server, pages and JSON API for survey answer
// imports.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/surveyimport/internal/config"
	"github.com/JonMunkholm/surveyimport/internal/core"
	"github.com/JonMunkholm/surveyimport/internal/metrics"
	mw "github.com/JonMunkholm/surveyimport/internal/web/middleware"
)

// Server is the HTTP server for the importer.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	history  core.HistoryStore
	metrics  *metrics.Metrics
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server

	limiters []*rateLimiter
}

// NewServer wires routes and middleware. history and m may be nil.
func NewServer(cfg *config.Config, service *core.Service, history core.HistoryStore, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:      cfg,
		service:  service,
		history:  history,
		metrics:  m,
		validate: newValidator(),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Use(s.requestTimeout())

		r.Get("/", s.handleIndexPage)
		r.Get("/import/{runID}", s.handleRunPage)
		r.Get("/history", s.handleHistoryPage)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Progress streams are long-lived and must not be compressed or timed out.
		r.Get("/import/{runID}/progress", s.handleProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Use(s.requestTimeout())

			r.Get("/template", s.handleTemplate)
			r.Get("/history", s.handleHistory)

			r.With(s.importRateLimit()).Post("/import", s.handleImport)
			r.Get("/import/{runID}", s.handleStatus)
			r.Post("/import/{runID}/proceed", s.handleProceed)
			r.Delete("/import/{runID}", s.handleReset)
		})
	})
}

// requestTimeout bounds ordinary requests. A zero timeout disables it.
func (s *Server) requestTimeout() func(http.Handler) http.Handler {
	if s.cfg.Server.RequestTimeout <= 0 {
		return passthrough
	}
	return middleware.Timeout(s.cfg.Server.RequestTimeout)
}

// importRateLimit applies the stricter per-IP limit for starting imports.
func (s *Server) importRateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return passthrough
	}
	return s.newRateLimiter(s.cfg.Rate.ImportLimit).middleware
}

func (s *Server) newRateLimiter(perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func passthrough(next http.Handler) http.Handler { return next }

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
