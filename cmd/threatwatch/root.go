// Package main implements the threatwatch CLI. Each pipeline stage runs as
// its own subcommand so the stages can be deployed and scaled separately.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/threatwatch/pipeline/internal/bootstrap"
	"github.com/threatwatch/pipeline/internal/logger"
	"github.com/threatwatch/pipeline/internal/server"
)

const version = "1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "threatwatch",
	Short: "News threat monitoring pipeline",
	Long: `Threatwatch ingests news from configured sources, classifies each
article for threat signals, and indexes the results for search. The three
stages communicate through durable streams and run as separate processes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("threatwatch version %s\n", version)
		},
	})

	rootCmd.AddCommand(ingestorCmd)
	rootCmd.AddCommand(classifierCmd)
	rootCmd.AddCommand(indexerCmd)
}

// runStage boots the shared infrastructure, starts the operational HTTP
// server, and runs the stage loop until SIGINT or SIGTERM.
func runStage(cmd *cobra.Command, stage string, run func(ctx context.Context, app *bootstrap.App, checks map[string]server.Check) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Log.Info("starting stage", logger.String("stage", stage))
	return run(ctx, app, app.HealthChecks())
}

// serveOps starts the health and metrics server in the background and
// returns a function that shuts it down.
func serveOps(app *bootstrap.App, stage string, checks map[string]server.Check) func() {
	srv := server.New(
		stage,
		version,
		app.Config.Service.Port,
		app.Config.Service.Debug,
		checks,
		app.Log,
	)

	go func() {
		if err := srv.Start(); err != nil {
			app.Log.Error("http server failed", logger.Error(err))
		}
	}()

	return func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			app.Log.Error("http server shutdown failed", logger.Error(err))
		}
	}
}
