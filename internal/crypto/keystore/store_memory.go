package keystore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegis/pkg/platform/sentinel"
)

// MemoryStore serializes key operations under a mutex, giving the same
// one-active-key-per-alias guarantee the postgres partial unique index does.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]Key
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[uuid.UUID]Key)}
}

func (s *MemoryStore) GetOrCreateActive(_ context.Context, candidate Key) (Key, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.keys {
		if key.Alias == candidate.Alias && key.Active {
			return key, false, nil
		}
	}
	s.keys[candidate.ID] = candidate
	return candidate, true, nil
}

func (s *MemoryStore) GetByID(_ context.Context, keyID uuid.UUID) (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[keyID]
	if !ok {
		return Key{}, sentinel.ErrNotFound
	}
	return key, nil
}

func (s *MemoryStore) Rotate(_ context.Context, alias string, replacement Key, rotatedAt time.Time) (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for keyID, key := range s.keys {
		if key.Alias == alias && key.Active {
			t := rotatedAt
			key.Active = false
			key.RotatedAt = &t
			s.keys[keyID] = key
		}
	}
	s.keys[replacement.ID] = replacement
	return replacement, nil
}

// ActiveCount reports how many active keys exist for an alias. Test helper
// for the invariant.
func (s *MemoryStore) ActiveCount(alias string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, key := range s.keys {
		if key.Alias == alias && key.Active {
			count++
		}
	}
	return count
}
