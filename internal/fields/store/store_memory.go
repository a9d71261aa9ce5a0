package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory metadata store for tests and development.
type MemoryStore struct {
	mu   sync.RWMutex
	meta map[string]map[string]Meta // resource -> field -> meta
}

func NewMemory() *MemoryStore {
	return &MemoryStore{meta: make(map[string]map[string]Meta)}
}

func (s *MemoryStore) Upsert(_ context.Context, meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.meta[meta.Resource]
	if !ok {
		fields = make(map[string]Meta)
		s.meta[meta.Resource] = fields
	}
	fields[meta.Field] = meta
	return nil
}

func (s *MemoryStore) ListByResource(_ context.Context, resource string) ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields := s.meta[resource]
	out := make([]Meta, 0, len(fields))
	for _, m := range fields {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}
