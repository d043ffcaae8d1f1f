// Package insightscmder is the root insights cobra command.
package insightscmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
	configcmder "github.com/papercomputeco/insights/cmd/insights/config"
	derivecmder "github.com/papercomputeco/insights/cmd/insights/derive"
	ingestcmder "github.com/papercomputeco/insights/cmd/insights/ingest"
	seedcmder "github.com/papercomputeco/insights/cmd/insights/seed"
	versioncmder "github.com/papercomputeco/insights/cmd/version"
)

const insightsLongDesc string = `Insights derives review dashboards from recorded app sessions.

Records (sessions, issues and daily trends) are ingested into SQLite or
PostgreSQL, then derived into a dashboard: recommended sessions to replay,
weekly retention cohorts, period-over-period momentum and issue sparklines.

Get started:
  insights seed        Seed a demo dataset
  insights derive      Derive the dashboard as JSON
  insights ingest      Ingest record batches from Kafka`

const insightsShortDesc string = "Insights - session insight derivation"

func NewInsightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "insights",
		Short:        insightsShortDesc,
		Long:         insightsLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(cmdsetup.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(cmdsetup.FlagConfigDir, "", "Override path to .insights/ config directory")

	// Add subcommands
	cmd.AddCommand(derivecmder.NewDeriveCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
