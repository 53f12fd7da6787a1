// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect and validate streamit configuration files.

Use 'streamit init' to create a new configuration file.

Subcommands:
  show      Display the effective configuration
  validate  Validate a configuration file
  schema    Generate JSON schema for IDE/validation`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}
