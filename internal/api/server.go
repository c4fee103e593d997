package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/camarigor/miner-profit/internal/config"
	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
	"github.com/camarigor/miner-profit/internal/profit"
	"github.com/camarigor/miner-profit/internal/storage"
)

// MinerStore is the miner config store as seen by the API
type MinerStore interface {
	LoadMiners(ctx context.Context) ([]mining.MinerSpec, error)
	Fleet(ctx context.Context) (storage.Fleet, error)
	SaveMiners(ctx context.Context, miners []mining.MinerSpec) ([]mining.MinerSpec, error)
}

// MarketData refreshes the market bundle for a range
type MarketData interface {
	Refresh(ctx context.Context, r mining.DateRange) (market.Bundle, error)
	Today() string
}

// Server represents the HTTP API server
type Server struct {
	cfg      *config.Config
	store    MinerStore
	market   MarketData
	engine   *profit.Engine
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	now      func() time.Time
	server   *http.Server
}

// NewServer creates a new API server. A nil gatherer serves the default registry.
func NewServer(cfg *config.Config, store MinerStore, md MarketData, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		market:   md,
		engine:   profit.NewEngine(store, md),
		gatherer: gatherer,
		logger:   logger,
		now:      time.Now,
	}
}

// Router builds the chi router with every route mounted
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// Miner config
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)

		// Market data
		r.Get("/market", s.handleGetMarket)
		r.Get("/coins", s.handleGetCoins)

		// Computation
		r.Get("/revenue", s.handleGetRevenue)
		r.Get("/export", s.handleExport)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
