package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudpanel/authcore/config"
	"github.com/cloudpanel/authcore/internal/fixtures"
	"github.com/cloudpanel/authcore/internal/handlers"
	"github.com/cloudpanel/authcore/internal/mq"
	"github.com/cloudpanel/authcore/internal/services"
	"github.com/cloudpanel/authcore/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server, the core and its background sweeper.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	core       *Core
	events     *mq.MQ
	logger     *slog.Logger
}

// New wires the core, optional event publishing and fixtures, and the
// HTTP routes. Fixtures are loaded before New returns.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		events *mq.MQ
		sink   services.EventPublisher
	)
	backend, err := mq.NewBackend(ctx, cfg.Events)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		events = mq.New(backend, logger)
		publisher, err := mq.NewEventPublisher(events, cfg.Events.Channel)
		if err != nil {
			_ = events.Close()
			return nil, err
		}
		sink = publisher
	}

	core, err := NewCore(cfg.Auth, logger, registry, sink)
	if err != nil {
		closeEvents(events)
		return nil, err
	}

	if cfg.Fixtures.Source != config.FixturesNone {
		if err := loadFixtures(ctx, cfg.Fixtures, core, logger); err != nil {
			closeEvents(events)
			return nil, err
		}
	}

	authHandler := handlers.NewAuthHandler(core.Auth, core.UserSvc, cfg.Auth.CookieName, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		core:       core,
		events:     events,
		logger:     logger,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Core exposes the identity and session core.
func (s *Server) Core() *Core {
	return s.core
}

// Start starts the session sweeper and serves HTTP until ctx is done, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.core.Sweeper.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.core.Sweeper.Stop()
		closeEvents(s.events)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, stops the sweeper and closes the
// event backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.core.Sweeper.Stop()
	closeEvents(s.events)
	s.logger.Info("server stopped")
	return err
}

func loadFixtures(ctx context.Context, cfg config.FixturesConfig, core *Core, logger *slog.Logger) error {
	src, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}
	loader := fixtures.NewLoader(core.Auth, core.UserSvc, logger)
	_, err = loader.LoadFrom(ctx, src, cfg.Key)
	return err
}

func closeEvents(events *mq.MQ) {
	if events != nil {
		_ = events.Close()
	}
}
