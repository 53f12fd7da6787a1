// Package commands implements the streamit CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/yxiaowhut/streamit/cmd/streamit/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "streamit",
	Short: "streamit - dataflow command core",
	Long: `streamit runs dataflow pipelines on a simulated SPU core: filters and
buffers live in a small local store, filter state is staged in and out of
shared memory by chunked DMA, and every command is a resumable handler
driven by a single-threaded dispatcher.

Use "streamit [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/streamit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routinesCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
