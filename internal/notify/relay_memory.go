package notify

import (
	"context"
	"slices"
	"sync"
)

// InMemoryRelay records notifications for tests and local development.
type InMemoryRelay struct {
	mu   sync.Mutex
	sent []Notification
}

func NewInMemoryRelay() *InMemoryRelay {
	return &InMemoryRelay{}
}

func (m *InMemoryRelay) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (m *InMemoryRelay) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// OfKind filters Sent by kind.
func (m *InMemoryRelay) OfKind(k Kind) []Notification {
	var out []Notification
	for _, n := range m.Sent() {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}
