// Package web serves the HTTP API: connector and form management, the
// submission endpoint, the delivery queue and a stateless reconcile preview.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rtrvrtg/contact-form-connect/internal/config"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
	mw "github.com/rtrvrtg/contact-form-connect/internal/web/middleware"
)

const contentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// Server is the HTTP server.
type Server struct {
	service *core.Service
	cfg     config.Config
	router  *chi.Mux
	server  *http.Server

	apiLimiter    *mw.RateLimiter
	submitLimiter *mw.RateLimiter
}

// NewServer creates a Server for service configured by cfg.
func NewServer(service *core.Service, cfg config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.apiLimiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute)
		s.submitLimiter = mw.NewRateLimiter(cfg.Rate.SubmissionsPerMinute)
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
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Submissions come from public forms; they are limited separately and
		// never require an API key.
		r.Group(func(r chi.Router) {
			s.limit(r, s.submitLimiter)
			r.Post("/forms/{formID}/submissions", s.handleSubmit)
		})

		r.Group(func(r chi.Router) {
			s.limit(r, s.apiLimiter)
			r.Use(mw.APIKeyAuth(s.cfg.Security))

			r.Get("/status", s.handleStatus)

			r.Get("/services", s.handleListServices)
			r.Get("/services/{service}/settings-form", s.handleSettingsForm)

			r.Get("/connectors", s.handleListConnectors)
			r.Post("/connectors", s.handleCreateConnector)
			r.Get("/connectors/{id}", s.handleGetConnector)
			r.Put("/connectors/{id}", s.handleUpdateConnector)
			r.Delete("/connectors/{id}", s.handleDeleteConnector)

			r.Get("/forms/{formID}", s.handleGetForm)
			r.Put("/forms/{formID}", s.handleSaveForm)
			r.Get("/forms/{formID}/connectors", s.handleListBindings)
			r.Put("/forms/{formID}/connectors/{connectorID}", s.handleSaveBinding)
			r.Delete("/forms/{formID}/connectors/{connectorID}", s.handleDeleteBinding)

			r.Get("/deliveries", s.handleListDeliveries)
			r.Get("/deliveries/{id}", s.handleGetDelivery)
			r.Post("/deliveries/{id}/retry", s.handleRetryDelivery)

			r.Post("/reconcile", s.handleReconcile)
		})
	})
}

func (s *Server) limit(r chi.Router, rl *mw.RateLimiter) {
	if rl != nil {
		r.Use(rl.Handler)
	}
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// SweepLimiters forgets idle rate limiter clients every interval until ctx
// is done.
func (s *Server) SweepLimiters(ctx context.Context, interval time.Duration) {
	if s.apiLimiter == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.apiLimiter.Sweep()
			s.submitLimiter.Sweep()
		}
	}
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

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		}
		next.ServeHTTP(w, r)
	})
}
