package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/app"
	"github.com/DeplanckeLab/scfair/pkg/config"
	"github.com/DeplanckeLab/scfair/pkg/handlers"
	"github.com/DeplanckeLab/scfair/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("backend", cfg.Backend.Kind),
		zap.String("ontology_source", cfg.Ontology.Source),
		zap.Strings("elasticsearch", cfg.Elasticsearch.Addresses),
		zap.String("datasets_index", cfg.Elasticsearch.DatasetsIndex))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start facet engine", zap.Error(err))
	}
	defer engine.Close()

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, engine.Search, logger).RegisterRoutes(mux)
	handlers.NewFacetsHandler(engine.FacetService, cfg.Facets.DefaultLimit, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(engine.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting scfair facet engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	logConfig := zap.NewDevelopmentConfig()
	return logConfig.Build()
}
