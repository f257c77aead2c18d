/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/opsfloor/lineplan/internal/api"
	"github.com/opsfloor/lineplan/internal/cache"
	"github.com/opsfloor/lineplan/internal/config"
	"github.com/opsfloor/lineplan/internal/db"
	"github.com/opsfloor/lineplan/internal/eventbus"
	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/optimizer"
	"github.com/opsfloor/lineplan/internal/runclock"
	"github.com/opsfloor/lineplan/internal/scheduling"
	"github.com/opsfloor/lineplan/internal/store"
	"github.com/opsfloor/lineplan/internal/telemetry"
)

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	router chi.Router

	db        *gorm.DB
	cache     *cache.Cache
	bus       *events.Bus
	bridge    *eventbus.Bridge
	store     *store.Store
	optimizer *optimizer.Service
	validator *scheduling.Validator
	runClock  *runclock.Clock
	api       *api.API

	httpServer    *http.Server
	metricsServer *http.Server

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New wires the full service graph.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	loc := cfg.Location()
	bus := events.NewBus()

	catalogCache := cache.New(context.Background(), cache.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	}, logger)

	var bridge *eventbus.Bridge
	if cfg.NATSURL != "" {
		bridge, err = eventbus.NewBridge(cfg.NATSURL, bus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats bridge unavailable, continuing without it")
			bridge = nil
		}
	}

	st := store.New(database, catalogCache, logger)
	opt := optimizer.New(st, bus, loc, logger)
	validator := scheduling.NewValidator(st, bus, logger)
	clock := runclock.New(st, bus, cfg.ClockInterval(), logger)

	apiHandler := api.New(st, opt, validator, bus, []byte(cfg.JWTSigningKey), loc, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	apiHandler.Routes(router)

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		db:        database,
		cache:     catalogCache,
		bus:       bus,
		bridge:    bridge,
		store:     st,
		optimizer: opt,
		validator: validator,
		runClock:  clock,
		api:       apiHandler,
	}

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(router, "lineplan.http"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.metricsServer = &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           telemetry.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Start launches the HTTP listeners and background loops. It blocks until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.runClock.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("run status clock exited")
		}
	}()

	go func() {
		s.logger.Info().Str("addr", s.metricsServer.Addr).Msg("metrics server listening")
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		_ = s.Shutdown()
		return err
	}
}

// Shutdown stops listeners and background loops and releases resources.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down")

	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)
	_ = s.metricsServer.Shutdown(shutdownCtx)

	if s.bridge != nil {
		_ = s.bridge.Close()
	}
	_ = s.cache.Close()
	return db.Close(s.db)
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}
