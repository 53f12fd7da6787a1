package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yxiaowhut/streamit/internal/cli/output"
	"github.com/yxiaowhut/streamit/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a streamit configuration file.

Checks for syntax errors, out-of-range sizes and incomplete backend settings.

Examples:
  # Validate default config
  streamit config validate

  # Validate specific config file
  streamit config validate --config ./streamit.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Shared.Backend == config.BackendMemory {
		warnings = append(warnings, "shared.backend is memory: shared memory is lost when a run ends")
	}
	if cfg.Shared.Backend == config.BackendBadger && cfg.Shared.Badger.InMemory {
		warnings = append(warnings, "shared.badger.in_memory is set: pages are not persisted")
	}
	if cfg.Core.Slots > cfg.Core.Tags {
		warnings = append(warnings, "core.slots exceeds core.tags: extra slots can only be used by multi-piece copies")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.PrintKeyValues(out, [][2]string{
		{"Local store", cfg.Core.LocalStoreSize.String()},
		{"Max transfer", cfg.Core.MaxTransferSize.String()},
		{"Tags / slots", fmt.Sprintf("%d / %d", cfg.Core.Tags, cfg.Core.Slots)},
		{"Shared backend", cfg.Shared.Backend},
		{"Page size", cfg.Shared.PageSize.String()},
		{"Log level", cfg.Logging.Level},
	})
}
