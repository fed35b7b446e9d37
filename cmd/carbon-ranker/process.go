package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustainops/carbon-ranker/internal/cli"
	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/engine"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Normalize all pending records and rebuild the leaderboard",
		Long: `Run the full pipeline over every unprocessed record: detect issues,
plan a strategy, normalize, and critique with bounded retries. When every
record has a terminal outcome the monthly rollups and Green Score rankings
are rebuilt from scratch.`,
		RunE: runProcess,
	}

	cmd.Flags().Int("concurrency", engine.DefaultConcurrency, "records processed in parallel")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	_ = viper.BindPFlag("processing.concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	noProgress, _ := cmd.Flags().GetBool("no-progress")

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

	pending, err := store.GetUnprocessedRecords(ctx)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !noProgress && len(pending) > 0 {
		bar = progressbar.Default(int64(len(pending)), "processing")
		opts = append(opts, engine.WithProgress(func() {
			_ = bar.Add(1)
		}))
	}

	eng := engine.New(store, opts...)

	stats, err := eng.ProcessAll(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if errors.Is(err, common.ErrNoRawRecords) {
		fmt.Println(cli.WarningStyle.Render("Nothing to process. Ingest or seed data first."))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println(cli.TitleStyle.Render("Processing complete"))
	fmt.Printf("  %s %d record(s) in %s\n", cli.BoldStyle.Render("Processed:"), stats.Processed, stats.Duration.Round(time.Millisecond))
	fmt.Printf("  %s %d\n", cli.SuccessStyle.Render("Succeeded:"), stats.Succeeded)
	if stats.Degraded > 0 {
		fmt.Printf("  %s %d (accepted below quality threshold)\n", cli.WarningStyle.Render("Degraded:"), stats.Degraded)
	}
	if stats.Abandoned > 0 {
		fmt.Printf("  %s %d (no usable data)\n", cli.ErrorStyle.Render("Abandoned:"), stats.Abandoned)
	}
	fmt.Printf("  %s %d\n", cli.SubtleStyle.Render("Retries:"), stats.Retries)

	return nil
}
