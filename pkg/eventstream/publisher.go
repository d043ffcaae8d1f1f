package eventstream

import "context"

// Publisher publishes insights events to an event stream backend.
type Publisher interface {
	PublishDashboard(ctx context.Context, event *DashboardDerivedEvent) error
	PublishRecords(ctx context.Context, event *RecordBatchEvent) error
	Close() error
}
