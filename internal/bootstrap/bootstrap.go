// Package bootstrap wires the shared infrastructure a stage binary needs:
// configuration, logging, the relational store, and the stream broker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/threatwatch/pipeline/internal/broker"
	"github.com/threatwatch/pipeline/internal/config"
	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/logger"
	"github.com/threatwatch/pipeline/internal/metrics"
	"github.com/threatwatch/pipeline/internal/server"
)

// App holds the infrastructure shared by every stage.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	DB      *sqlx.DB
	Streams *broker.StreamsClient
	Metrics *metrics.Metrics
}

// New loads configuration and connects to Postgres and Redis. Migrations
// run on every start; they are idempotent.
func New(ctx context.Context, configPath string) (*App, error) {
	if configPath == "" {
		configPath = config.GetConfigPath("config.yml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info("postgres connection established",
		logger.String("host", cfg.Database.Host),
		logger.String("database", cfg.Database.Database))

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	streams, err := broker.NewStreamsClient(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("redis connection established", logger.String("addr", cfg.Redis.Addr))

	return &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Streams: streams,
		Metrics: metrics.New(),
	}, nil
}

// HealthChecks returns probes for the shared dependencies.
func (a *App) HealthChecks() map[string]server.Check {
	return map[string]server.Check{
		"postgres": func(ctx context.Context) error {
			return a.DB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return a.Streams.Ping(ctx)
		},
	}
}

// Close releases the shared connections.
func (a *App) Close() {
	if err := a.Streams.Close(); err != nil {
		a.Log.Error("failed to close redis client", logger.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Error("failed to close postgres connection", logger.Error(err))
	}
	_ = a.Log.Sync()
}
