package memory

import (
	"context"
	"sync"

	"rihla/internal/audit"
	id "rihla/pkg/domain"
)

// InMemoryStore keeps audit events per organization. Used in tests and
// single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.OrgID][]audit.Event
	order  []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.OrgID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.OrgID][]audit.Event)
	s.order = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.OrgID] = append(s.events[event.OrgID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByOrg(_ context.Context, orgID id.OrgID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[orgID]...), nil
}

// ListRecent returns the last N appended events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.order) {
		limit = len(s.order)
	}
	recent := make([]audit.Event, 0, limit)
	for i := len(s.order) - 1; i >= len(s.order)-limit; i-- {
		recent = append(recent, s.order[i])
	}
	return recent, nil
}
