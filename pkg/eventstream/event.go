package eventstream

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/papercomputeco/insights/pkg/deck"
	"github.com/papercomputeco/insights/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDashboardDerived is emitted after a dashboard is derived.
	EventTypeDashboardDerived = "insights.dashboard.derived"

	// EventTypeRecordBatch carries records to be ingested.
	EventTypeRecordBatch = "insights.records.v1"
)

// DashboardDerivedEvent is a transport-neutral event payload for a derived
// dashboard.
type DashboardDerivedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Generation    uint64          `json:"generation"`
	Dashboard     *deck.Dashboard `json:"dashboard"`
}

// NewDashboardDerivedEvent wraps d for publishing.
func NewDashboardDerivedEvent(d *deck.Dashboard, generation uint64, now time.Time) *DashboardDerivedEvent {
	return &DashboardDerivedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDashboardDerived,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Generation:    generation,
		Dashboard:     d,
	}
}

// Key is the partition key: events for one selection stay ordered.
func (e *DashboardDerivedEvent) Key() string {
	if e.Dashboard == nil {
		return ""
	}
	return e.Dashboard.Key
}

// RecordBatchEvent carries one storage.Batch between producers and the
// ingest consumer.
type RecordBatchEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Batch         storage.Batch `json:"batch"`
}

// NewRecordBatchEvent wraps batch for publishing.
func NewRecordBatchEvent(batch storage.Batch, now time.Time) *RecordBatchEvent {
	return &RecordBatchEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRecordBatch,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Batch:         batch,
	}
}

// Key is the partition key: batches for one project stay ordered.
func (e *RecordBatchEvent) Key() string {
	return storage.ProjectOrDefault(e.Batch.Project)
}

// DecodeRecordBatch parses a record batch payload. Records inside the batch
// decode leniently; only a malformed envelope is an error.
func DecodeRecordBatch(payload []byte) (*RecordBatchEvent, error) {
	event := &RecordBatchEvent{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("decoding record batch: %w", err)
	}

	if event.EventType != EventTypeRecordBatch {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedEventType, event.EventType)
	}
	if event.SchemaVersion != SchemaVersionV1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, event.SchemaVersion)
	}

	return event, nil
}
