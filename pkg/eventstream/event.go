// Package eventstream defines the events emitted after a record has been
// persisted and the publishers that ship them.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/taperelay/pkg/reassembly"
	"github.com/papercomputeco/taperelay/pkg/record"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordPersisted is emitted after a record is handed to a sink
	// successfully.
	EventTypeRecordPersisted = "taperelay.record.persisted"
)

// RecordPersistedEvent is a transport-neutral event payload for a persisted
// record. It carries identifiers and metadata, not the exchange itself.
type RecordPersistedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	RecordID      string          `json:"record_id"`
	CapturedAt    time.Time       `json:"captured_at"`
	Model         string          `json:"model,omitempty"`
	Mode          reassembly.Mode `json:"mode"`
	Sink          string          `json:"sink"`
	DurationMs    int64           `json:"duration_ms"`
	ResponseBytes int             `json:"response_bytes"`
}

// NewRecordPersistedEvent builds the event for rec persisted to the named sink.
func NewRecordPersistedEvent(rec *record.Record, sink string, emittedAt time.Time) *RecordPersistedEvent {
	return &RecordPersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRecordPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		RecordID:      rec.ID,
		CapturedAt:    rec.Timestamp,
		Model:         rec.Meta.Model,
		Mode:          rec.Meta.Mode,
		Sink:          sink,
		DurationMs:    rec.Meta.DurationMs,
		ResponseBytes: len(rec.Response),
	}
}
