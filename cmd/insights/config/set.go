package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file stored in
the .insights/ directory. The value is validated before the file is written:
ranges must be one of 24h, 7d, 30d, 90d or all, limits must be positive and
brokers must be host:port pairs.

Examples:
  insights config set storage.driver postgres
  insights config set storage.postgres_dsn postgres://localhost/insights
  insights config set dashboard.cohort_weeks 8
  insights config set eventstream.brokers kafka-1:9092,kafka-2:9092`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, args[0], args[1])
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runSet(cmd *cobra.Command, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := newConfiger(cmd)
	if err != nil {
		return err
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	fmt.Fprintf(out, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
