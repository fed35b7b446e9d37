package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sustainops/carbon-ranker/internal/cli"
	"github.com/sustainops/carbon-ranker/internal/model"
)

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the Green Score leaderboard",
		Long: `Display the latest month's vendor ranking by composite Green Score,
with per-metric competition ranks alongside.`,
		RunE: runLeaderboard,
	}

	cmd.Flags().String("month", "", "show a specific month instead of the latest")

	return cmd
}

func runLeaderboard(cmd *cobra.Command, _ []string) error {
	month, _ := cmd.Flags().GetString("month")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if month == "" {
		month, err = store.LatestRankingMonth(ctx)
		if err != nil {
			return err
		}
	}
	if month == "" {
		fmt.Println(cli.WarningStyle.Render("No rankings yet. Run 'carbon-ranker process' first."))
		return nil
	}

	rankings, err := store.GetRankings(ctx, month)
	if err != nil {
		return err
	}
	if len(rankings) == 0 {
		fmt.Println(cli.WarningStyle.Render("No rankings for " + month + "."))
		return nil
	}

	fmt.Println(cli.TitleStyle.Render("🌱 Green Score Leaderboard - " + month))
	printRankingTable(rankings)

	return nil
}

func printRankingTable(rankings []model.Ranking) {
	header := fmt.Sprintf("%-4s %-20s %8s %10s %14s %8s %8s",
		"#", "Vendor", "Score", "tCO2e", "g/1k tokens", "Util%", "Quality")
	fmt.Println(cli.TableHeaderStyle.Render(header))

	for _, r := range rankings {
		score := cli.ScoreStyle(r.GreenScore).Render(fmt.Sprintf("%8.1f", r.GreenScore))
		row := fmt.Sprintf("%-4d %-20s %s %10.3f %14s %8.1f %8.1f",
			r.OverallRank,
			r.Vendor,
			score,
			r.TCO2e,
			cli.FormatMetric(r.GPer1kTokens, "%.1f"),
			r.UtilizationAvg,
			r.DataQuality)
		fmt.Println(cli.TableCellStyle.Render(row))
	}

	fmt.Println(cli.SubtleStyle.Render(strings.Repeat("─", 80)))
	fmt.Println(cli.SubtleStyle.Render("Score = 40% emissions + 40% carbon intensity + 20% utilization"))
}
