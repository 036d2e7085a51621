// Package httpapi exposes the permission handler as a JSON HTTP API for
// hosts that cannot embed the engine. Requests are answered headless: an
// operation above the level is blocked, never prompted.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/ports"
)

const maxBodyBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:7878",
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the HTTP server.
type Server struct {
	config       Config
	router       *chi.Mux
	handler      *permission.Handler
	conversation ports.Conversation
	logger       ports.Logger
}

// New creates a new Server instance.
func New(cfg Config, handler *permission.Handler, conversation ports.Conversation, logger ports.Logger) *Server {
	s := &Server{
		config:       cfg,
		router:       chi.NewRouter(),
		handler:      handler,
		conversation: conversation,
		logger:       logger,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tool-call", s.toolCall)
		r.Post("/user-bash", s.userBash)
		r.Post("/classify", s.classify)
		r.Post("/message", s.message)
		r.Get("/system-prompt", s.systemPrompt)

		r.Route("/permission", func(r chi.Router) {
			r.Get("/", s.getPermission)
			r.Put("/", s.setPermission)
			r.Post("/cycle", s.cyclePermission)
		})
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("http api listening", map[string]interface{}{"addr": s.config.Addr})
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
