// Package config loads the shared pipeline configuration from a YAML file
// with optional .env files and environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// Default service configuration values.
const (
	defaultServiceVersion = "1.0.0"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Default database configuration values.
const (
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "threatwatch"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultDBConnLifetimeH = 1
)

// Default broker configuration values.
const (
	defaultRedisAddr     = "localhost:6379"
	defaultStreamPrefix  = "articles"
	defaultPrefetch      = 4
	defaultMaxDeliveries = 5
	defaultClaimMinIdle  = 30 * time.Second
)

// Default stage configuration values.
const (
	defaultTickInterval    = time.Minute
	defaultFetchTimeout    = 30 * time.Second
	defaultFetchRatePerSec = 2
	defaultModelTimeout    = 60 * time.Second
	defaultModelMaxTokens  = 300
	defaultIndexName       = "articles"
)

// Config holds the full pipeline configuration. Each stage binary reads the
// same file and uses the sections it needs.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Logging       LoggingConfig       `yaml:"logging"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Classify      ClassifyConfig      `yaml:"classify"`
	Index         IndexConfig         `yaml:"index"`
}

// ServiceConfig holds service identity and runtime settings.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"SERVICE_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"    yaml:"debug"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port                  int           `env:"POSTGRES_PORT"     yaml:"port"`
	User                  string        `env:"POSTGRES_USER"     yaml:"user"`
	Password              string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database              string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode               string        `yaml:"sslmode"`
	MaxConnections        int           `yaml:"max_connections"`
	MaxIdleConns          int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// RedisConfig holds Redis Streams broker settings.
type RedisConfig struct {
	Addr          string        `env:"REDIS_ADDR"     yaml:"addr"`
	Password      string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB            int           `env:"REDIS_DB"       yaml:"db"`
	StreamPrefix  string        `yaml:"stream_prefix"`
	Prefetch      int           `yaml:"prefetch"`
	MaxDeliveries int           `yaml:"max_deliveries"`
	ClaimMinIdle  time.Duration `yaml:"claim_min_idle"`
}

// ElasticsearchConfig holds search index settings.
type ElasticsearchConfig struct {
	URL      string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Username string `env:"ELASTICSEARCH_USERNAME" yaml:"username"`
	Password string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	APIKey   string `env:"ELASTICSEARCH_API_KEY"  yaml:"api_key"`
}

// IngestConfig holds Ingestion Stage settings.
type IngestConfig struct {
	TickInterval    time.Duration `env:"INGEST_TICK_INTERVAL" yaml:"tick_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	FetchRatePerSec int           `yaml:"fetch_rate_per_sec"`
	NewsAPIKey      string        `env:"NEWSAPI_KEY" yaml:"newsapi_key"`
}

// ClassifyConfig holds Classification Stage settings.
type ClassifyConfig struct {
	// ModelEndpoint enables the remote model backend when non-empty.
	ModelEndpoint  string        `env:"MODEL_ENDPOINT" yaml:"model_endpoint"`
	ModelTimeout   time.Duration `yaml:"model_timeout"`
	ModelMaxTokens int           `yaml:"model_max_tokens"`
}

// IndexConfig holds Indexing Stage settings.
type IndexConfig struct {
	IndexName string `env:"INDEX_NAME" yaml:"index_name"`
}

// LoadConfig loads configuration from a YAML file, applies defaults, then
// env overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg, loadErr := load(path, setDefaults)
	if loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	if c.Redis.Prefetch < 1 {
		return fmt.Errorf("redis.prefetch must be at least 1")
	}

	if c.Ingest.TickInterval < time.Second {
		return fmt.Errorf("ingest.tick_interval must be at least 1s")
	}

	return nil
}

// setDefaults applies default values to all configuration sections.
func setDefaults(cfg *Config) {
	if cfg.Service.Version == "" {
		cfg.Service.Version = defaultServiceVersion
	}

	setLoggingDefaults(&cfg.Logging)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setStageDefaults(cfg)
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}

	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}

	if d.Port == 0 {
		d.Port = defaultDBPort
	}

	if d.User == "" {
		d.User = defaultDBUser
	}

	if d.Database == "" {
		d.Database = defaultDBName
	}

	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}

	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}

	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}

	if d.ConnectionMaxLifetime == 0 {
		d.ConnectionMaxLifetime = defaultDBConnLifetimeH * time.Hour
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Addr == "" {
		r.Addr = defaultRedisAddr
	}

	if r.StreamPrefix == "" {
		r.StreamPrefix = defaultStreamPrefix
	}

	if r.Prefetch == 0 {
		r.Prefetch = defaultPrefetch
	}

	if r.MaxDeliveries == 0 {
		r.MaxDeliveries = defaultMaxDeliveries
	}

	if r.ClaimMinIdle == 0 {
		r.ClaimMinIdle = defaultClaimMinIdle
	}
}

func setStageDefaults(cfg *Config) {
	if cfg.Ingest.TickInterval == 0 {
		cfg.Ingest.TickInterval = defaultTickInterval
	}

	if cfg.Ingest.FetchTimeout == 0 {
		cfg.Ingest.FetchTimeout = defaultFetchTimeout
	}

	if cfg.Ingest.FetchRatePerSec == 0 {
		cfg.Ingest.FetchRatePerSec = defaultFetchRatePerSec
	}

	if cfg.Classify.ModelTimeout == 0 {
		cfg.Classify.ModelTimeout = defaultModelTimeout
	}

	if cfg.Classify.ModelMaxTokens == 0 {
		cfg.Classify.ModelMaxTokens = defaultModelMaxTokens
	}

	if cfg.Index.IndexName == "" {
		cfg.Index.IndexName = defaultIndexName
	}
}
