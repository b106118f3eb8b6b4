package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/taperelay/pkg/eventstream"
)

// ErrMockPublish is returned by MockPublisher when FailPublish is set.
var ErrMockPublish = errors.New("mock publish failure")

// MockPublisher collects published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.RecordPersistedEvent

	// FailPublish causes PublishRecord to return ErrMockPublish.
	FailPublish bool

	closed bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishRecord(_ context.Context, event *eventstream.RecordPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPublish {
		return ErrMockPublish
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a snapshot of published events.
func (m *MockPublisher) Events() []*eventstream.RecordPersistedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*eventstream.RecordPersistedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}
