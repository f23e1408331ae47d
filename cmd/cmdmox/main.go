// Command cmdmox is the management CLI: diagnostics and version
// reporting for a cmdmox installation. It is not involved in the
// record/replay/verify flow itself (that lives in the library), only in
// helping a developer confirm their environment can run it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version, Commit, and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cmdmox",
	Short: "Diagnostics for cmdmox, a record/replay/verify CLI test-double library",
	Long: `cmdmox - diagnostics for the cmdmox Go library

cmdmox itself is a library (import github.com/cmdmox/cmdmox in a test
binary); this command only inspects the installation and environment a
test run would use.

Examples:
  cmdmox doctor
  cmdmox doctor --format json
  cmdmox version`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() { //nolint:gochecknoinits
	rootCmd.SetVersionTemplate(fmt.Sprintf("cmdmox version {{.Version}} (commit: %s, built: %s)\n", Commit, Date))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
