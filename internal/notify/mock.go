package notify

import (
	"context"
	"sync"
)

// MockNotifier records sent events for tests.
type MockNotifier struct {
	mu     sync.Mutex
	Name   string // platform name; "mock" when empty
	Events []Event
	Err    error // returned from Send when set
	closed bool
}

// Send implements Notifier.
func (m *MockNotifier) Send(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, evt)
	return nil
}

// Platform implements Notifier.
func (m *MockNotifier) Platform() string {
	if m.Name != "" {
		return m.Name
	}
	return "mock"
}

// Close implements Notifier.
func (m *MockNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of the recorded events.
func (m *MockNotifier) Sent() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.Events))
	copy(out, m.Events)
	return out
}
