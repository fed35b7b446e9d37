package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustainops/carbon-ranker/internal/engine"
	"github.com/sustainops/carbon-ranker/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the pipeline and leaderboard over HTTP:

  POST /api/process            run the pipeline
  GET  /api/leaderboard        latest Green Score ranking
  GET  /api/company/{vendor}   one vendor's metrics and audit trail
  GET  /api/metrics/summary    headline totals for the ranked month
  GET  /api/processing/status  ingest depth and audit-trail health
  POST /api/reset              wipe all pipeline data`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dataCleaner, err := initCleaner()
	if err != nil {
		return fmt.Errorf("failed to configure cleaner: %w", err)
	}

	opts := []engine.Option{
		engine.WithConcurrency(viper.GetInt("processing.concurrency")),
	}
	if dataCleaner != nil {
		opts = append(opts, engine.WithCleaner(dataCleaner))
	}
	eng := engine.New(store, opts...)

	api := server.New(server.Config{
		Addr:            viper.GetString("server.addr"),
		ShutdownTimeout: 10 * time.Second,
	}, store, eng)

	return api.Start()
}
