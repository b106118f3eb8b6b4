// Package nop provides the publisher used when no event backend is
// configured.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
)

// Publisher discards events, counting how many it was handed.
type Publisher struct {
	discarded atomic.Uint64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishRecord discards event. A nil event is still an error so callers
// behave the same with and without a backend.
func (p *Publisher) PublishRecord(_ context.Context, event *eventstream.RecordPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.discarded.Add(1)
	return nil
}

// Discarded returns the number of events accepted so far.
func (p *Publisher) Discarded() uint64 {
	return p.discarded.Load()
}

func (p *Publisher) Close() error {
	return nil
}
