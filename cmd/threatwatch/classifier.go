package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/threatwatch/pipeline/internal/bootstrap"
	"github.com/threatwatch/pipeline/internal/broker"
	"github.com/threatwatch/pipeline/internal/classify"
	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/server"
)

const classifierGroup = "classifiers"

var classifierCmd = &cobra.Command{
	Use:   "classifier",
	Short: "Run the classification stage",
	Long: `Consumes article-ingested events, classifies each article with the
remote model (falling back to keyword rules), persists the assessment, and
publishes article-classified events.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStage(cmd, "classifier", runClassifier)
	},
}

func runClassifier(ctx context.Context, app *bootstrap.App, checks map[string]server.Check) error {
	var model classify.Backend
	if endpoint := app.Config.Classify.ModelEndpoint; endpoint != "" {
		model = classify.NewRemoteModel(
			endpoint,
			app.Config.Classify.ModelMaxTokens,
			app.Config.Classify.ModelTimeout,
			app.Log,
		)
	}

	service := classify.NewService(
		database.NewArticleRepository(app.DB),
		database.NewClassificationRepository(app.DB),
		model,
		broker.NewPublisher(app.Streams, app.Log),
		app.Metrics,
		app.Log,
	)

	consumer, err := broker.NewConsumer(app.Streams, broker.ConsumerConfig{
		Channel:       domain.StreamIngested,
		Group:         classifierGroup,
		Prefetch:      app.Config.Redis.Prefetch,
		MaxDeliveries: app.Config.Redis.MaxDeliveries,
		ClaimMinIdle:  app.Config.Redis.ClaimMinIdle,
		OnDeadLetter:  app.Metrics.DeadLetters.Inc,
	}, service, app.Log)
	if err != nil {
		return err
	}

	stopOps := serveOps(app, "classifier", checks)
	defer stopOps()

	return consumer.Run(ctx)
}
