package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sustainops/carbon-ranker/internal/cli"
	"github.com/sustainops/carbon-ranker/internal/common"
)

func companyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company <vendor>",
		Short: "Show one vendor's metrics and processing history",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompany,
	}

	cmd.Flags().String("month", "", "show a specific month instead of the latest")
	cmd.Flags().Int("log-lines", 20, "audit trail entries to show")

	return cmd
}

func runCompany(cmd *cobra.Command, args []string) error {
	vendor := args[0]
	month, _ := cmd.Flags().GetString("month")
	logLines, _ := cmd.Flags().GetInt("log-lines")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if month == "" {
		month, err = store.LatestRollupMonth(ctx)
		if err != nil {
			return err
		}
	}
	if month == "" {
		fmt.Println(cli.WarningStyle.Render("No data yet. Run 'carbon-ranker process' first."))
		return nil
	}

	rollup, err := store.GetRollup(ctx, vendor, month)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("no data for vendor %q in %s", vendor, month)
	}
	if err != nil {
		return err
	}

	fmt.Println(cli.TitleStyle.Render(vendor + " - " + month))
	fmt.Printf("  %s %.1f kWh total (avg PUE %.2f)\n", cli.BoldStyle.Render("Energy:"), rollup.TotalKWh, rollup.PUEAvg)
	fmt.Printf("  %s %.3f tCO2e\n", cli.BoldStyle.Render("Emissions:"), rollup.TCO2e)
	fmt.Printf("  %s %s g/1k tokens, %s g/call\n", cli.BoldStyle.Render("Intensity:"),
		cli.FormatMetric(rollup.GPer1kTokens, "%.1f"),
		cli.FormatMetric(rollup.GPerCall, "%.2f"))
	fmt.Printf("  %s %s tokens/tCO2e\n", cli.BoldStyle.Render("Efficiency:"),
		cli.FormatMetric(rollup.TokensPerTCO2e, "%.0f"))
	fmt.Printf("  %s %.1f%%\n", cli.BoldStyle.Render("Utilization:"), rollup.UtilizationAvg)
	fmt.Printf("  %s %.1f/100\n", cli.BoldStyle.Render("Data quality:"), rollup.DataQuality)

	ranking, err := store.GetRanking(ctx, vendor, month)
	if err == nil {
		score := cli.ScoreStyle(ranking.GreenScore).Render(fmt.Sprintf("%.1f", ranking.GreenScore))
		fmt.Printf("  %s %s (rank #%d)\n", cli.BoldStyle.Render("Green Score:"), score, ranking.OverallRank)
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	entries, err := store.GetProcessingLog(ctx, vendor, "", logLines)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		fmt.Println()
		fmt.Println(cli.BoldStyle.Render("Recent processing decisions:"))
		for _, entry := range entries {
			line := fmt.Sprintf("  [%s] %s: %s", entry.Stage, entry.Action, entry.Details)
			if entry.RetryCount > 0 {
				line += fmt.Sprintf(" (retry %d)", entry.RetryCount)
			}
			fmt.Println(cli.SubtleStyle.Render(line))
		}
	}

	return nil
}
