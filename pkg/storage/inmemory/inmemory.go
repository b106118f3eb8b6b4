// Package inmemory provides a process-local record sink, used when no durable
// storage is configured and throughout the test suites.
package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/storage"
)

// Driver implements storage.Sink and storage.Reader using an in-memory slice.
type Driver struct {
	// mu is a read write sync mutex guarding records and byID
	mu sync.RWMutex

	// records holds records in persist order
	records []*record.Record
	byID    map[string]*record.Record
}

// NewDriver creates a new in-memory sink.
func NewDriver() *Driver {
	return &Driver{
		byID: make(map[string]*record.Record),
	}
}

// Name implements storage.Sink.
func (d *Driver) Name() string {
	return "memory"
}

// Persist stores a record.
func (d *Driver) Persist(_ context.Context, rec *record.Record) error {
	if rec == nil {
		return storage.ErrNilRecord
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.records = append(d.records, rec)
	d.byID[rec.ID] = rec
	return nil
}

// Get retrieves a record by its ID.
func (d *Driver) Get(_ context.Context, id string) (*record.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byID[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return rec, nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (d *Driver) List(_ context.Context, limit int) ([]*record.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := slices.Clone(d.records)
	slices.Reverse(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// Records returns every stored record in persist order.
func (d *Driver) Records() []*record.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.records)
}

// Close is a no-op for the in-memory sink.
func (d *Driver) Close() error {
	return nil
}
