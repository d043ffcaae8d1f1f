// Package configcmder provides the config command for managing persistent
// insights configuration stored in the .insights/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
	"github.com/papercomputeco/insights/pkg/config"
)

const configLongDesc string = `Manage persistent insights configuration.

Configuration is stored as config.toml in the .insights/ directory and provides
default values for command flags. CLI flags and INSIGHTS_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  dashboard.project, dashboard.range, dashboard.session_limit,
  dashboard.recommendation_limit, dashboard.cohort_count, dashboard.cohort_weeks,
  eventstream.brokers, eventstream.topic, eventstream.ingest_topic,
  eventstream.group_id

Use subcommands to get, set, or list configuration values:
  insights config set <key> <value>    Set a configuration value
  insights config get <key>            Get a configuration value
  insights config list                 List all configuration values

Examples:
  insights config set dashboard.project checkout
  insights config set dashboard.range 7d
  insights config get storage.driver
  insights config list`

const configShortDesc string = "Manage persistent insights configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func newConfiger(cmd *cobra.Command) (*config.Configer, error) {
	cfger, err := config.NewConfiger(cmdsetup.ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfger, nil
}
