// Package commands implements the taskforge CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "taskforge",
	Short: "Pluggable task lifecycle engine",
	Long: `Taskforge creates, schedules and executes tasks through a validated
status lifecycle. Task types come from builtins and from Lua plugins;
recurring runs are driven by cron schedules in the config file.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
}
