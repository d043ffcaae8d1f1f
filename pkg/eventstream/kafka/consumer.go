package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/insights/pkg/eventstream"
	"github.com/papercomputeco/insights/pkg/ingest"
	"github.com/papercomputeco/insights/pkg/logger"
	"github.com/papercomputeco/insights/pkg/utils"
)

// payloadPreviewLen caps how much of an undecodable payload is logged.
const payloadPreviewLen = 96

// messageReader is the part of *kafkago.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ConsumerConfig configures a record batch Consumer.
type ConsumerConfig struct {
	// Brokers are the bootstrap host:port addresses.
	Brokers []string

	// Topic carries insights.records.v1 events.
	Topic string

	// GroupID is the consumer group; offsets are committed per group.
	GroupID string

	// Pool stores the decoded batches.
	Pool *ingest.Pool

	Logger *slog.Logger
}

// ConsumerStats counts messages handled by a Consumer.
type ConsumerStats struct {
	Ingested uint64
	Skipped  uint64
}

// Consumer reads record batch events and stores them through an ingest pool.
// An offset is committed only after its batch was stored; undecodable
// messages are logged, skipped and committed so they cannot block the
// partition.
type Consumer struct {
	reader messageReader
	pool   *ingest.Pool
	logger *slog.Logger

	ingested atomic.Uint64
	skipped  atomic.Uint64
}

// NewConsumer creates a Consumer joined to the configured group.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer requires at least one broker")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka consumer requires a topic and group id")
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return newConsumer(reader, cfg.Pool, cfg.Logger)
}

func newConsumer(reader messageReader, pool *ingest.Pool, log *slog.Logger) (*Consumer, error) {
	if pool == nil {
		return nil, errors.New("kafka consumer requires an ingest pool")
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Consumer{
		reader: reader,
		pool:   pool,
		logger: log,
	}, nil
}

// Run consumes until ctx is done, which is a clean stop and returns nil. A
// failed fetch, store or commit stops the consumer with an error; the
// uncommitted message is redelivered on the next run.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetching message: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("committing offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error {
	event, err := eventstream.DecodeRecordBatch(msg.Value)
	if err != nil {
		c.skipped.Add(1)
		c.logger.Warn("skipping undecodable message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"payload", utils.Truncate(string(msg.Value), payloadPreviewLen),
			"error", err,
		)
		return nil
	}

	if err := c.pool.Submit(ctx, event.Batch); err != nil {
		return fmt.Errorf("ingesting event %s: %w", event.EventID, err)
	}

	c.ingested.Add(1)
	c.logger.Debug("record batch ingested",
		"event_id", event.EventID,
		"project", event.Batch.Project,
		"records", event.Batch.Len(),
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	return nil
}

// Stats returns a snapshot of the consumer counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Ingested: c.ingested.Load(),
		Skipped:  c.skipped.Load(),
	}
}

// Close leaves the consumer group and closes the connection.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
