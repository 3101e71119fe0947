// Package app wires configuration into the running facet engine: the search
// backend, the ontology term source chain and the facet service.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/config"
	"github.com/DeplanckeLab/scfair/pkg/database"
	"github.com/DeplanckeLab/scfair/pkg/facets"
	"github.com/DeplanckeLab/scfair/pkg/fixtures"
	"github.com/DeplanckeLab/scfair/pkg/ontology"
	"github.com/DeplanckeLab/scfair/pkg/repositories"
	"github.com/DeplanckeLab/scfair/pkg/retry"
	"github.com/DeplanckeLab/scfair/pkg/search"
	"github.com/DeplanckeLab/scfair/pkg/services"
	"github.com/DeplanckeLab/scfair/pkg/workerpool"
)

// App holds the long-lived components built from a Config.
type App struct {
	Search       *search.ResilientClient
	Lookup       *ontology.Lookup
	FacetService services.FacetService
	Registry     *prometheus.Registry

	db    *database.DB
	redis *redis.Client
}

// New builds every component. On error, whatever was opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector())

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Search = search.NewResilientClient(backend, search.ResilienceOptions{
		Retry: &retry.Config{
			MaxRetries:       cfg.Retry.MaxRetries,
			InitialDelay:     cfg.Retry.InitialDelay,
			MaxDelay:         cfg.Retry.MaxDelay,
			Multiplier:       cfg.Retry.Multiplier,
			JitterFactor:     cfg.Retry.JitterFactor,
			MaxSameErrorType: 3,
		},
		CircuitBreaker: search.CircuitBreakerConfig{
			Threshold:  cfg.CircuitBreaker.Threshold,
			ResetAfter: cfg.CircuitBreaker.ResetAfter,
		},
		RequestTimeout: cfg.Elasticsearch.RequestTimeout,
		MaxQPS:         cfg.Elasticsearch.MaxQPS,
		Burst:          cfg.Elasticsearch.Burst,
	}, logger)

	source, err := a.termSource(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Lookup = ontology.NewLookup(source, logger)

	a.FacetService = services.NewFacetService(
		a.Search,
		a.Lookup,
		workerpool.New(workerpool.Config{MaxConcurrent: cfg.Facets.WorkerPoolSize}, logger),
		services.NewFacetMetrics(a.Registry),
		services.FacetServiceConfig{
			DatasetsIndex:      cfg.Elasticsearch.DatasetsIndex,
			MaxAggregationSize: cfg.Facets.MaxAggregationSize,
			Policy:             facets.PolicyFromConfig(cfg.Facets),
		},
		logger,
	)
	return a, nil
}

// newBackend returns the raw search backend. The memory backend is seeded
// from the configured fixture file.
func newBackend(cfg *config.Config, logger *zap.Logger) (search.Client, error) {
	switch cfg.Backend.Kind {
	case config.BackendMemory:
		f, err := fixtures.Load(cfg.Backend.FixturePath)
		if err != nil {
			return nil, err
		}
		mem := search.NewMemoryClient()
		if _, err := fixtures.Seed(f, mem, cfg.Elasticsearch.DatasetsIndex, cfg.Elasticsearch.OntologyIndex, logger); err != nil {
			return nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
		return mem, nil
	case config.BackendElasticsearch:
		es, err := search.NewElasticsearchClient(&cfg.Elasticsearch, logger)
		if err != nil {
			return nil, err
		}
		return es, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

// termSource builds the ontology source chain: the search index or Postgres,
// optionally behind the Redis cache.
func (a *App) termSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ontology.TermSource, error) {
	var source ontology.TermSource
	switch cfg.Ontology.Source {
	case config.OntologySourcePostgres:
		db, err := database.NewConnection(ctx, database.ConfigFrom(&cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := db.Migrate(cfg.Database.MigrationsPath, logger); err != nil {
			return nil, err
		}
		source = repositories.NewOntologyTermRepository(db.Pool)
	default:
		source = ontology.NewSearchSource(a.Search, cfg.Elasticsearch.OntologyIndex)
	}

	client, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("Ontology cache disabled", zap.Error(err))
		return source, nil
	}
	if client == nil {
		return source, nil
	}
	a.redis = client
	logger.Info("Ontology cache enabled",
		zap.String("addr", client.Options().Addr),
		zap.Duration("ttl", cfg.Ontology.CacheTTL))
	return ontology.NewCachedSource(source, client, cfg.Ontology.CacheTTL, logger), nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}
