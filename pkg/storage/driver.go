// Package storage defines where finished records go. A Sink is chosen once at
// startup and receives every record the proxy captures.
package storage

import (
	"context"

	"github.com/papercomputeco/taperelay/pkg/record"
)

// Sink persists captured records. Implementations must be safe for concurrent
// use by many in-flight requests and must not serialize unrelated writes
// behind a single global lock.
type Sink interface {
	// Persist stores one record. It is called exactly once per record and is
	// never retried by the caller.
	Persist(ctx context.Context, rec *record.Record) error

	// Name identifies the sink in logs and events (e.g. "file", "sqlite").
	Name() string

	// Close releases any resources held by the sink.
	Close() error
}

// Reader is implemented by sinks that can read records back for review.
type Reader interface {
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*record.Record, error)

	// Get returns a record by ID, or NotFoundError.
	Get(ctx context.Context, id string) (*record.Record, error)
}
