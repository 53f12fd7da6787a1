package config

import (
	"github.com/spf13/cobra"

	"github.com/yxiaowhut/streamit/internal/cli/output"
	"github.com/yxiaowhut/streamit/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and STREAMIT_* environment
overrides have been applied. Without a config file the defaults are shown.

Examples:
  # Show as YAML
  streamit config show

  # Show as JSON
  streamit config show --output json

  # See the effect of an override
  STREAMIT_CORE_TAGS=8 streamit config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}
