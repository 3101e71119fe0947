package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Backend kinds.
const (
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Ontology metadata sources.
const (
	OntologySourceSearch   = "search"
	OntologySourcePostgres = "postgres"
)

// Config holds all configuration for the facet service.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Backend        BackendConfig        `yaml:"backend"`
	Elasticsearch  ElasticsearchConfig  `yaml:"elasticsearch"`
	Ontology       OntologyConfig       `yaml:"ontology"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Facets         FacetsConfig         `yaml:"facets"`
}

// BackendConfig selects where dataset documents are searched.
type BackendConfig struct {
	// Kind is "elasticsearch" or "memory". The memory backend is loaded from FixturePath.
	Kind        string `yaml:"kind" env:"SEARCH_BACKEND" env-default:"elasticsearch"`
	FixturePath string `yaml:"fixture_path" env:"SEARCH_FIXTURE_PATH" env-default:""`
}

// ElasticsearchConfig holds search cluster configuration.
type ElasticsearchConfig struct {
	AddressesStr        string        `yaml:"addresses" env:"ES_ADDRESSES" env-default:"http://localhost:9200"`
	Addresses           []string      `yaml:"-"` // Parsed from AddressesStr
	Username            string        `yaml:"username" env:"ES_USERNAME" env-default:""`
	Password            string        `yaml:"-" env:"ES_PASSWORD"` // Secret - not in YAML
	APIKey              string        `yaml:"-" env:"ES_API_KEY"`  // Secret - not in YAML
	CompressRequestBody bool          `yaml:"compress_request_body" env:"ES_COMPRESS_REQUEST_BODY" env-default:"false"`
	DatasetsIndex       string        `yaml:"datasets_index" env:"ES_DATASETS_INDEX" env-default:"datasets"`
	OntologyIndex       string        `yaml:"ontology_index" env:"ES_ONTOLOGY_INDEX" env-default:"ontology_terms"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"ES_REQUEST_TIMEOUT" env-default:"10s"`
	// MaxQPS caps outgoing search calls. Zero disables limiting.
	MaxQPS float64 `yaml:"max_qps" env:"ES_MAX_QPS" env-default:"0"`
	Burst  int     `yaml:"burst" env:"ES_BURST" env-default:"10"`
}

// OntologyConfig selects where term metadata comes from and how long it is cached.
type OntologyConfig struct {
	Source   string        `yaml:"source" env:"ONTOLOGY_SOURCE" env-default:"search"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"ONTOLOGY_CACHE_TTL" env-default:"1h"`
}

// DatabaseConfig holds PostgreSQL database configuration.
// Only used when the ontology source is "postgres".
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"scfair"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"scfair"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis configuration. An empty host disables caching.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// RetryConfig controls retries of transient search backend failures.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"2"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"RETRY_INITIAL_DELAY" env-default:"500ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"4s"`
	Multiplier   float64       `yaml:"multiplier" env:"RETRY_MULTIPLIER" env-default:"2"`
	JitterFactor float64       `yaml:"jitter_factor" env:"RETRY_JITTER_FACTOR" env-default:"0.1"`
}

// CircuitBreakerConfig controls the search backend circuit breaker.
// A zero threshold disables it.
type CircuitBreakerConfig struct {
	Threshold  int           `yaml:"threshold" env:"CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	ResetAfter time.Duration `yaml:"reset_after" env:"CIRCUIT_BREAKER_RESET_AFTER" env-default:"30s"`
}

// FacetsConfig holds facet processing settings, including the thresholds used
// to decide which hierarchy terms are shown.
type FacetsConfig struct {
	DefaultLimit       int `yaml:"default_limit" env:"FACETS_DEFAULT_LIMIT" env-default:"30"`
	MaxAggregationSize int `yaml:"max_aggregation_size" env:"FACETS_MAX_AGGREGATION_SIZE" env-default:"10000"`
	WorkerPoolSize     int `yaml:"worker_pool_size" env:"FACETS_WORKER_POOL_SIZE" env-default:"4"`

	StrictRatio              float64 `yaml:"strict_ratio" env:"FACETS_STRICT_RATIO" env-default:"15"`
	LooseRatio               float64 `yaml:"loose_ratio" env:"FACETS_LOOSE_RATIO" env-default:"10"`
	SignificantDirectCount   int64   `yaml:"significant_direct_count" env:"FACETS_SIGNIFICANT_DIRECT_COUNT" env-default:"50"`
	UniversalShare           float64 `yaml:"universal_share" env:"FACETS_UNIVERSAL_SHARE" env-default:"0.8"`
	MinUniversalCount        int64   `yaml:"min_universal_count" env:"FACETS_MIN_UNIVERSAL_COUNT" env-default:"10"`
	ChildDominanceShare      float64 `yaml:"child_dominance_share" env:"FACETS_CHILD_DOMINANCE_SHARE" env-default:"0.9"`
	ZeroDirectDominanceShare float64 `yaml:"zero_direct_dominance_share" env:"FACETS_ZERO_DIRECT_DOMINANCE_SHARE" env-default:"0.85"`
	MinGroupingChildren      int     `yaml:"min_grouping_children" env:"FACETS_MIN_GROUPING_CHILDREN" env-default:"2"`
	MaxGroupingChildren      int     `yaml:"max_grouping_children" env:"FACETS_MAX_GROUPING_CHILDREN" env-default:"8"`
	GroupingRatioMultiplier  float64 `yaml:"grouping_ratio_multiplier" env:"FACETS_GROUPING_RATIO_MULTIPLIER" env-default:"2"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist, configuration comes from the environment and
// defaults alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.parseComplexFields()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	for _, addr := range parseList(c.Elasticsearch.AddressesStr) {
		c.Elasticsearch.Addresses = append(c.Elasticsearch.Addresses, ResolveAddressForDocker(addr))
	}
	c.Database.Host = ResolveHostForDocker(c.Database.Host)
	if c.Redis.Host != "" {
		c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
	}
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	c.Ontology.Source = strings.ToLower(strings.TrimSpace(c.Ontology.Source))
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch backend requires at least one address")
		}
	case BackendMemory:
		if c.Backend.FixturePath == "" {
			return fmt.Errorf("memory backend requires fixture_path")
		}
		if c.Ontology.Source == OntologySourcePostgres {
			return fmt.Errorf("memory backend cannot be combined with the postgres ontology source")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend.Kind)
	}

	switch c.Ontology.Source {
	case OntologySourceSearch, OntologySourcePostgres:
	default:
		return fmt.Errorf("unknown ontology source %q", c.Ontology.Source)
	}

	f := c.Facets
	if f.DefaultLimit <= 0 {
		return fmt.Errorf("facets.default_limit must be positive")
	}
	if f.MaxAggregationSize <= 0 {
		return fmt.Errorf("facets.max_aggregation_size must be positive")
	}
	if f.MinGroupingChildren > f.MaxGroupingChildren {
		return fmt.Errorf("facets.min_grouping_children (%d) exceeds max_grouping_children (%d)",
			f.MinGroupingChildren, f.MaxGroupingChildren)
	}
	for name, share := range map[string]float64{
		"universal_share":             f.UniversalShare,
		"child_dominance_share":       f.ChildDominanceShare,
		"zero_direct_dominance_share": f.ZeroDirectDominanceShare,
	} {
		if share <= 0 || share > 1 {
			return fmt.Errorf("facets.%s must be in (0, 1], got %v", name, share)
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ListenAddr returns the bind address and port joined for http.Server.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
