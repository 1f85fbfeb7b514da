package hid

import (
	"context"
	"sync"
)

// MockHID records written reports. Setting Err makes every write fail.
type MockHID struct {
	mu      sync.Mutex
	reports []Report
	closed  bool
	Err     error
}

func NewMockHID() *MockHID {
	return &MockHID{}
}

func (m *MockHID) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockHID) WriteReport(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.reports = append(m.reports, Report{ID: r.ID, Data: append([]byte(nil), r.Data...)})
	return nil
}

// Reports returns every report written so far, each as ID followed by data.
func (m *MockHID) Reports() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r.Bytes())
	}
	return out
}

func (m *MockHID) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = nil
}
