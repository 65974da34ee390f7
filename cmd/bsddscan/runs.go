package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bsddscan/bsddscan/internal/config"
	"github.com/bsddscan/bsddscan/internal/database"
)

// NewRunsCmd creates the runs command, which lists crawl history from the
// local database.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past crawl runs",
		Long: `Runs lists the crawl history stored in the local database: when each
crawl ran, how many classes it collected, and how many were unreachable.

Examples:
  # Show the 20 most recent runs
  bsddscan runs

  # Show more history
  bsddscan runs --limit 100`,
		RunE: runRunsCmd,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	// Require an existing database: listing history should not create one.
	db, err := database.Open(config.XDGDataDir(), database.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		return fmt.Errorf("no crawl history: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawl runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		status := ""
		if run.Truncated {
			status = " (truncated)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "#%d  %s  classes=%d failed=%d waves=%d  %s%s\n",
			run.ID,
			run.FinishedAt.Format(time.DateTime),
			run.ClassCount,
			run.FailedCount,
			run.Waves,
			run.StartURI,
			status,
		)
	}

	return nil
}
