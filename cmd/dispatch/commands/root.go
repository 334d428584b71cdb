// Package commands implements the dispatch CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.2.0"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Priority task queue with a staged approval pipeline",
	Long: `Dispatch holds tasks in a priority queue and runs each one through a
five-stage approval pipeline before handing it to an execution backend.

Drop task files into the spool directory (or use "dispatch enqueue") and
run the engine with "dispatch run".`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Config file path (default ~/.config/dispatch/config.yaml)")
}
