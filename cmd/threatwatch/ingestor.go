package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/threatwatch/pipeline/internal/bootstrap"
	"github.com/threatwatch/pipeline/internal/broker"
	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/fetcher"
	"github.com/threatwatch/pipeline/internal/ingest"
	"github.com/threatwatch/pipeline/internal/server"
)

var ingestorCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "Run the ingestion stage",
	Long: `Polls due sources on a fixed interval, deduplicates fetched items by
fingerprint, persists new articles, and publishes article-ingested events.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStage(cmd, "ingestor", runIngestor)
	},
}

func runIngestor(ctx context.Context, app *bootstrap.App, checks map[string]server.Check) error {
	registry := fetcher.NewRegistry(fetcher.RegistryConfig{
		Timeout:    app.Config.Ingest.FetchTimeout,
		RatePerSec: app.Config.Ingest.FetchRatePerSec,
		NewsAPIKey: app.Config.Ingest.NewsAPIKey,
	}, app.Log)

	service := ingest.NewService(
		database.NewSourceRepository(app.DB),
		database.NewArticleRepository(app.DB),
		registry,
		broker.NewPublisher(app.Streams, app.Log),
		app.Metrics,
		app.Log,
	)

	scheduler := ingest.NewScheduler(service, app.Config.Ingest.TickInterval, app.Log)

	stopOps := serveOps(app, "ingestor", checks)
	defer stopOps()

	return scheduler.Run(ctx)
}
