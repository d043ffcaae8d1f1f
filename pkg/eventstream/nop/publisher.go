package nop

import (
	"context"

	"github.com/papercomputeco/insights/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishDashboard validates input and otherwise does nothing.
func (p *Publisher) PublishDashboard(_ context.Context, event *eventstream.DashboardDerivedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// PublishRecords validates input and otherwise does nothing.
func (p *Publisher) PublishRecords(_ context.Context, event *eventstream.RecordBatchEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
