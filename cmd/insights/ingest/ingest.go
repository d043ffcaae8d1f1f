// Package ingestcmder provides the ingest command, which stores record batch
// events from Kafka.
package ingestcmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/insights/cmd/insights/cmdsetup"
	"github.com/papercomputeco/insights/cmd/insights/storeopen"
	"github.com/papercomputeco/insights/pkg/config"
	"github.com/papercomputeco/insights/pkg/eventstream/kafka"
	"github.com/papercomputeco/insights/pkg/ingest"
	"github.com/papercomputeco/insights/pkg/logger"
)

const ingestLongDesc string = `Ingest record batches from Kafka into storage.

Joins the consumer group on the ingest topic and stores every
insights.records.v1 event through a pool of storage workers. Offsets are
committed once a batch is stored. Runs until interrupted.

Examples:
  insights ingest --brokers localhost:9092
  insights ingest --brokers kafka-1:9092,kafka-2:9092 --workers 8
  insights ingest --log-file ./ingest.log`

const ingestShortDesc string = "Ingest record batches from Kafka"

var ingestFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagBrokers,
	config.FlagIngestTopic,
	config.FlagGroupID,
}

type ingestCommander struct {
	storageDriver string
	sqlite        string
	postgresDSN   string
	brokers       string
	ingestTopic   string
	groupID       string

	workers   uint
	queueSize uint
	logFile   string

	logger *slog.Logger
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagIngestTopic, &cmder.ingestTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagGroupID, &cmder.groupID)

	cmd.Flags().UintVar(&cmder.workers, "workers", 3, "Number of storage workers")
	cmd.Flags().UintVar(&cmder.queueSize, "queue-size", 256, "Pending batch queue size")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *ingestCommander) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.logger = cmdsetup.Logger(cmd)
	if c.logFile != "" {
		closeLog, err := c.attachLogFile(cmd)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	cfg, err := cmdsetup.LoadConfig(cmd, ingestFlags)
	if err != nil {
		return err
	}

	brokers := cfg.EventStream.BrokerList()
	if len(brokers) == 0 {
		return errors.New("ingest requires eventstream.brokers (set --brokers or INSIGHTS_EVENTSTREAM_BROKERS)")
	}

	driver, err := storeopen.Open(ctx, cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	pool, err := ingest.NewPool(&ingest.Config{
		Driver:     driver,
		NumWorkers: c.workers,
		QueueSize:  c.queueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: brokers,
		Topic:   cfg.EventStream.IngestTopic,
		GroupID: cfg.EventStream.GroupID,
		Pool:    pool,
		Logger:  c.logger,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	c.logger.Info("ingesting record batches",
		"brokers", brokers,
		"topic", cfg.EventStream.IngestTopic,
		"group_id", cfg.EventStream.GroupID,
		"workers", c.workers,
	)

	runErr := consumer.Run(ctx)

	consumed, stored := consumer.Stats(), pool.Stats()
	c.logger.Info("ingest stopped",
		"ingested", consumed.Ingested,
		"skipped", consumed.Skipped,
		"records", stored.Records,
		"failed", stored.Failed,
	)
	return runErr
}

// attachLogFile tees the command logger into a JSON log file.
func (c *ingestCommander) attachLogFile(cmd *cobra.Command) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(c.logFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	debug, _ := cmd.Flags().GetBool(cmdsetup.FlagDebug)
	c.logger = logger.Multi(c.logger, logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))

	return func() { _ = f.Close() }, nil
}
