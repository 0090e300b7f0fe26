// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sligter/canctool/internal/bridge"
	"github.com/sligter/canctool/internal/config"
	"github.com/sligter/canctool/internal/logging"
	"github.com/sligter/canctool/internal/model"
	"github.com/sligter/canctool/internal/provider"
)

// UsageReader lists recent usage rows for the diagnostics endpoint. It is
// nil when usage recording is disabled.
type UsageReader interface {
	RecentUsage(limit int) ([]*model.UsageRecord, error)
}

// Server is the HTTP front of the service: thin routing, auth and logging
// wrappers around the bridge pipeline.
type Server struct {
	cfg      *config.Config
	bridge   *bridge.Bridge
	registry *provider.Registry
	usage    UsageReader
	logger   *logging.Logger

	httpServer *http.Server
	done       chan struct{}
}

// New creates an HTTP server around the given bridge
func New(cfg *config.Config, b *bridge.Bridge, registry *provider.Registry, usage UsageReader, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	s := &Server{
		cfg:      cfg,
		bridge:   b,
		registry: registry,
		usage:    usage,
		logger:   logger,
		done:     make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route tree
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(cors.AllowAll().Handler)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Group(func(api chi.Router) {
		api.Use(s.requireAPIKey)

		api.Post("/v1/chat/completions", s.handleChatCompletions)
		api.Get("/v1/models", s.handleModels)
		api.Get("/v1/usage", s.handleUsage)
	})

	return r
}

// Start begins serving in the background. The Done channel closes when the
// listener exits.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		s.logger.Infof("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Done returns a channel closed when the listener has exited
func (s *Server) Done() <-chan struct{} {
	return s.done
}
