package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yxiaowhut/streamit/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Write the default configuration to $XDG_CONFIG_HOME/streamit/config.yaml,
or to the path given with --config.

The defaults run entirely in memory. Switch shared.backend to filesystem,
badger or s3 to keep shared memory between runs.

Examples:
  # Initialize with default location
  streamit init

  # Initialize with custom path
  streamit init --config ./streamit.yaml

  # Force overwrite existing config
  streamit init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to pick a shared memory backend")
	_, _ = fmt.Fprintln(out, "  2. Run a pipeline with: streamit run pipeline.yaml")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: streamit run pipeline.yaml --config %s\n", path)
	return nil
}
