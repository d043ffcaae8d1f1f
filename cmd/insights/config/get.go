package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/pkg/cliui"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file stored in the
.insights/ directory. Unset keys report their default.

Examples:
  insights config get dashboard.range
  insights config get eventstream.brokers`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0])
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runGet(cmd *cobra.Command, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := newConfiger(cmd)
	if err != nil {
		return err
	}

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if value == "" {
		fmt.Fprintf(out, "%s  %s\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
	} else {
		fmt.Fprintf(out, "%s  %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}
	return nil
}
