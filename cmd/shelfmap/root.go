// Package main provides the entry point for the shelfmap CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for shelfmap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfmap",
		Short: "Category hierarchy discovery for e-commerce retailers",
		Long: `shelfmap discovers the category tree of e-commerce retailers.

Starting from configured seed URLs it crawls category listing pages,
builds the parent/child hierarchy, and stores it in a local SQLite
database. Runs checkpoint their progress and can be resumed after a
crash or interruption with --resume.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewTreeCmd())
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
