package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sustainops/carbon-ranker/internal/cli"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all pipeline data",
		Long: `Remove every raw record, normalized record, rollup, ranking, and audit
trail entry. The grid intensity reference data is kept.`,
		RunE: runReset,
	}

	cmd.Flags().Bool("force", false, "skip the confirmation prompt")

	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		fmt.Print(cli.WarningStyle.Render("This deletes ALL pipeline data.") + " Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if answer = strings.ToLower(strings.TrimSpace(answer)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.ResetAll(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	slog.Info("All pipeline data deleted")
	fmt.Println(cli.SuccessStyle.Render("Pipeline data deleted."))
	return nil
}
