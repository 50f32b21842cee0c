package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/pkg/config"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a dartrefs configuration file for syntax errors and invalid values.

Examples:
  dartrefs config validate                      # Validates default config locations
  dartrefs -c dartrefs.toml config validate     # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file.

Examples:
  dartrefs config show                          # Show effective config
  dartrefs -c dartrefs.toml config show         # Show config from specific file`,
				Action: runConfigShow,
			},
		},
	}
}

func configOptions(c *cli.Context) []config.LoadOption {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return opts
}

func runConfigValidate(c *cli.Context) error {
	result, err := config.LoadConfig(configOptions(c)...)
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Fprintf(c.App.Writer, "  - %s\n", err)
		return err
	}

	if result.Source != "" {
		color.Green("Configuration valid: %s", result.Source)
	} else {
		color.Yellow("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	result, err := config.LoadConfig(configOptions(c)...)
	if err != nil {
		return err
	}

	if result.Source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(c.App.Writer, string(content))
	return nil
}
