// Package kafka implements the eventstream publisher and the record batch
// consumer on top of segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/papercomputeco/insights/pkg/eventstream"
	"github.com/papercomputeco/insights/pkg/logger"
)

const (
	defaultWriteTimeout     = 10 * time.Second
	defaultFailureThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second

	headerEventType = "event_type"
)

// messageWriter is the part of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// PublisherConfig configures a Kafka Publisher.
type PublisherConfig struct {
	// Brokers are the bootstrap host:port addresses.
	Brokers []string

	// DashboardTopic receives insights.dashboard.derived events.
	DashboardTopic string

	// RecordsTopic receives insights.records.v1 events.
	RecordsTopic string

	// WriteTimeout bounds a single write. Defaults to 10s.
	WriteTimeout time.Duration

	// FailureThreshold is the number of consecutive failed writes that opens
	// the circuit. Defaults to 5.
	FailureThreshold uint32

	// BreakerTimeout is how long the circuit stays open before a trial write.
	// Defaults to 30s.
	BreakerTimeout time.Duration

	Logger *slog.Logger
}

// Publisher writes insights events to Kafka. Writes go through a circuit
// breaker so an unreachable cluster fails fast instead of stalling callers.
type Publisher struct {
	dashboards messageWriter
	records    messageWriter
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     *slog.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for the configured brokers and topics.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.DashboardTopic == "" || cfg.RecordsTopic == "" {
		return nil, errors.New("kafka publisher requires dashboard and records topics")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	return newPublisher(cfg, newWriter(cfg, cfg.DashboardTopic), newWriter(cfg, cfg.RecordsTopic)), nil
}

func newWriter(cfg PublisherConfig, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

func newPublisher(cfg PublisherConfig, dashboards, records messageWriter) *Publisher {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Publisher{
		dashboards: dashboards,
		records:    records,
		breaker:    breaker,
		logger:     log,
	}
}

// PublishDashboard writes a dashboard event keyed by its selection key.
func (p *Publisher) PublishDashboard(ctx context.Context, event *eventstream.DashboardDerivedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.publish(ctx, p.dashboards, event.Key(), event.EventType, event)
}

// PublishRecords writes a record batch event keyed by its project.
func (p *Publisher) PublishRecords(ctx context.Context, event *eventstream.RecordBatchEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.publish(ctx, p.records, event.Key(), event.EventType, event)
}

func (p *Publisher) publish(ctx context.Context, w messageWriter, key, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(eventType)},
		},
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publishing %s event: %w", eventType, err)
	}

	p.logger.Debug("event published",
		"event_type", eventType,
		"key", key,
		"bytes", len(payload),
	)
	return nil
}

// State reports the circuit breaker state, e.g. "closed" or "open".
func (p *Publisher) State() string {
	return p.breaker.State().String()
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	return errors.Join(p.dashboards.Close(), p.records.Close())
}
