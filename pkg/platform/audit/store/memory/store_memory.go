package memory

import (
	"context"
	"sync"

	id "aegis/pkg/domain"
	"aegis/pkg/platform/audit"
)

// Store is an in-memory audit sink for tests and single-process development.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns a copy of every recorded event. Test helper.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
