package main

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/sustainops/carbon-ranker/internal/seed"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load mock vendor data for demos and testing",
		Long: `Generate synthetic operational reports from four fictional AI compute
vendors, spanning the spectrum from clean reporting to submissions with
missing energy, unknown regions, and fuzzy token counts.`,
		RunE: runSeed,
	}

	cmd.Flags().Int("per-vendor", seed.DefaultRecordsPerVendor, "records to generate per vendor")
	cmd.Flags().Int64("rand-seed", 0, "random seed (0 uses a fixed default for reproducibility)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	perVendor, _ := cmd.Flags().GetInt("per-vendor")
	randSeed, _ := cmd.Flags().GetInt64("rand-seed")
	if randSeed == 0 {
		randSeed = 42
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rng := rand.New(rand.NewSource(randSeed))
	records := seed.Records(rng, perVendor)

	if err := store.SaveRawRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to save mock records: %w", err)
	}

	slog.Info("Mock data loaded",
		"records", len(records),
		"per_vendor", perVendor)
	fmt.Printf("Loaded %d mock records. Run 'carbon-ranker process' to build the leaderboard.\n", len(records))

	return nil
}
