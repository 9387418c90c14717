package memory

import (
	"context"
	"sync"

	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process, grouped by subject.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SubjectID] = append(s.events[event.SubjectID], event)
	return nil
}

// ListBySubject returns the subject's events in append order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[subjectID]...), nil
}
