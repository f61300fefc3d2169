package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/threatwatch/pipeline/internal/bootstrap"
	"github.com/threatwatch/pipeline/internal/broker"
	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/indexing"
	"github.com/threatwatch/pipeline/internal/server"
)

const indexerGroup = "indexers"

var indexerCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Run the indexing stage",
	Long: `Consumes article-classified events, denormalizes each article with
its classification and country tags, and upserts the result into the
search index.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStage(cmd, "indexer", runIndexer)
	},
}

func runIndexer(ctx context.Context, app *bootstrap.App, checks map[string]server.Check) error {
	esClient, err := indexing.NewElasticsearchClient(ctx, app.Config.Elasticsearch, app.Log)
	if err != nil {
		return err
	}
	checks["elasticsearch"] = func(ctx context.Context) error {
		res, pingErr := esClient.Ping(esClient.Ping.WithContext(ctx))
		if pingErr != nil {
			return pingErr
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch returned %s", res.Status())
		}
		return nil
	}

	service := indexing.NewService(
		database.NewArticleRepository(app.DB),
		database.NewClassificationRepository(app.DB),
		indexing.NewWriter(esClient, app.Config.Index.IndexName),
		broker.NewPublisher(app.Streams, app.Log),
		app.Metrics,
		app.Log,
	)

	consumer, err := broker.NewConsumer(app.Streams, broker.ConsumerConfig{
		Channel:       domain.StreamClassified,
		Group:         indexerGroup,
		Prefetch:      app.Config.Redis.Prefetch,
		MaxDeliveries: app.Config.Redis.MaxDeliveries,
		ClaimMinIdle:  app.Config.Redis.ClaimMinIdle,
		OnDeadLetter:  app.Metrics.DeadLetters.Inc,
	}, service, app.Log)
	if err != nil {
		return err
	}

	stopOps := serveOps(app, "indexer", checks)
	defer stopOps()

	return consumer.Run(ctx)
}
