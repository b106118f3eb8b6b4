package eventstream

import (
	"context"
	"errors"
)

// MultiPublisher fans each event out to every wrapped publisher.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher wraps publishers. Nil entries are skipped.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// PublishRecord publishes to every backend, even after a failure, and
// returns the joined errors.
func (m *MultiPublisher) PublishRecord(ctx context.Context, event *RecordPersistedEvent) error {
	if event == nil {
		return ErrNilEvent
	}

	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishRecord(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend and returns the joined errors.
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
