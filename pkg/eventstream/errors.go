package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil event")

	// ErrUnexpectedEventType indicates a payload carried a different event type
	// than the decoder expects.
	ErrUnexpectedEventType = errors.New("unexpected event type")

	// ErrUnsupportedSchema indicates a payload schema version this build
	// cannot read.
	ErrUnsupportedSchema = errors.New("unsupported event schema version")
)
