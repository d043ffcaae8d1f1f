package seedcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
	"github.com/papercomputeco/insights/cmd/insights/storeopen"
	"github.com/papercomputeco/insights/pkg/cliui"
	"github.com/papercomputeco/insights/pkg/config"
	"github.com/papercomputeco/insights/pkg/deck"
	"github.com/papercomputeco/insights/pkg/eventstream"
	"github.com/papercomputeco/insights/pkg/eventstream/kafka"
)

const seedLongDesc string = `Seed a deterministic demo dataset.

Writes six weeks of sessions, a set of issues with daily event counts and
four weeks of daily trends for the demo project. The same day always produces
the same records.

Seeding refuses to write into a store that already holds records unless
--overwrite is set, which first removes the project's records. With --publish
the demo batches are sent to the ingest topic instead, for "insights ingest"
to store.

Examples:
  insights seed
  insights seed --sqlite ./insights.db
  insights seed --project checkout --overwrite
  insights seed --publish --brokers localhost:9092`

const seedShortDesc string = "Seed demo records"

var seedFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagIngestTopic,
}

type seedCommander struct {
	storageDriver string
	sqlite        string
	postgresDSN   string
	brokers       string
	topic         string
	ingestTopic   string

	project   string
	overwrite bool
	publish   bool

	out    io.Writer
	logger *slog.Logger
	now    func() time.Time
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{now: time.Now}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)
	config.AddStringFlag(cmd, config.Flags, config.FlagIngestTopic, &cmder.ingestTopic)

	cmd.Flags().StringVar(&cmder.project, "project", deck.DemoProject, "Project to seed")
	cmd.Flags().BoolVarP(&cmder.overwrite, "overwrite", "f", false, "Remove the project's records before seeding")
	cmd.Flags().BoolVar(&cmder.publish, "publish", false, "Publish demo batches to the ingest topic instead of storage")

	return cmd
}

func (c *seedCommander) run(cmd *cobra.Command) error {
	c.out = cmd.OutOrStdout()
	c.logger = cmdsetup.Logger(cmd)

	cfg, err := cmdsetup.LoadConfig(cmd, seedFlags)
	if err != nil {
		return err
	}

	if c.publish {
		return c.publishDemo(cmd.Context(), cfg)
	}
	return c.storeDemo(cmd.Context(), cfg)
}

func (c *seedCommander) storeDemo(ctx context.Context, cfg *config.Config) error {
	driver, err := storeopen.Open(ctx, cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	var result deck.SeedResult
	if err := cliui.Step(c.out, "Seeding demo data", func() error {
		var seedErr error
		result, seedErr = deck.SeedDemo(ctx, driver, c.project, c.now(), c.overwrite, c.logger)
		return seedErr
	}); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Seeded %s sessions into %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(result.Sessions)),
		cliui.ValueStyle.Render(c.project),
		cliui.DimStyle.Render(fmt.Sprintf("(%d issues, %d daily trends)", result.Issues, result.DailyTrends)),
	)
	return nil
}

func (c *seedCommander) publishDemo(ctx context.Context, cfg *config.Config) error {
	brokers := cfg.EventStream.BrokerList()
	if len(brokers) == 0 {
		return errors.New("--publish requires eventstream.brokers (set --brokers or INSIGHTS_EVENTSTREAM_BROKERS)")
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:        brokers,
		DashboardTopic: cfg.EventStream.Topic,
		RecordsTopic:   cfg.EventStream.IngestTopic,
		Logger:         c.logger,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	now := c.now()
	chunks := deck.DemoChunks(c.project, now)
	if err := cliui.Step(c.out, "Publishing demo batches", func() error {
		for _, chunk := range chunks {
			if err := publisher.PublishRecords(ctx, eventstream.NewRecordBatchEvent(chunk, now)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Published %s batches to %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(len(chunks))),
		cliui.ValueStyle.Render(cfg.EventStream.IngestTopic),
	)
	return nil
}
