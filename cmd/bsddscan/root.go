package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for bsddscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bsddscan",
		Short: "Crawler for buildingSMART Data Dictionary class taxonomies",
		Long: `bsddscan discovers a class taxonomy (such as the IFC class tree) by
crawling the buildingSMART Data Dictionary, starting from one class and
following child-class references until the whole reachable hierarchy has
been collected.

The crawl runs breadth-first in waves with a bounded worker pool and a
politeness delay, so large dictionaries finish quickly without hammering
the service.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
