package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "cmdmox version %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}

func init() { //nolint:gochecknoinits // standard cobra pattern
	rootCmd.AddCommand(versionCmd)
}
