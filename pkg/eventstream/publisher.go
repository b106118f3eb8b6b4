package eventstream

import "context"

// Publisher publishes record events to an event stream backend.
type Publisher interface {
	PublishRecord(ctx context.Context, event *RecordPersistedEvent) error
	Close() error
}
