package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/taperelay/pkg/record"
)

// ErrMockPersist is returned by MockSink when FailPersist is set.
var ErrMockPersist = errors.New("mock persist failure")

// MockSink is a test sink that records calls and can be told to fail.
type MockSink struct {
	mu sync.Mutex

	// Persisted accumulates all records passed to Persist.
	Persisted []*record.Record

	// FailPersist causes Persist to return ErrMockPersist.
	FailPersist bool

	// Calls counts Persist invocations, including failed ones.
	Calls int
}

// NewMockSink creates a new mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

func (m *MockSink) Persist(_ context.Context, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.FailPersist {
		return ErrMockPersist
	}
	m.Persisted = append(m.Persisted, rec)
	return nil
}

// Records returns a snapshot of persisted records.
func (m *MockSink) Records() []*record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*record.Record(nil), m.Persisted...)
}

// CallCount returns the number of Persist calls so far.
func (m *MockSink) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Calls
}

func (m *MockSink) Name() string {
	return "mock"
}

func (m *MockSink) Close() error {
	return nil
}
