package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegis/internal/consent"
	id "aegis/pkg/domain"
)

// MemoryStore keeps consent records in process memory. The mutex provides
// the same atomicity the postgres partial unique index does.
type MemoryStore struct {
	mu      sync.RWMutex
	records []consent.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) GrantIfAbsent(_ context.Context, record consent.Record) (consent.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.ClientID == record.ClientID && existing.Scope == record.Scope && existing.Active() {
			return existing, false, nil
		}
	}
	s.records = append(s.records, record)
	return record, true, nil
}

func (s *MemoryStore) FindActive(_ context.Context, clientID id.SubjectID, scope id.Scope) (*consent.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.records {
		if existing.ClientID == clientID && existing.Scope == scope && existing.Active() {
			copied := existing
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Revoke(_ context.Context, clientID id.SubjectID, scope id.Scope, revokedAt time.Time) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ClientID == clientID && s.records[i].Scope == scope && s.records[i].Active() {
			t := revokedAt
			s.records[i].RevokedAt = &t
			return s.records[i].ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (s *MemoryStore) ListByClient(_ context.Context, clientID id.SubjectID, includeRevoked bool) ([]consent.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []consent.Record
	for _, existing := range s.records {
		if existing.ClientID != clientID {
			continue
		}
		if !includeRevoked && !existing.Active() {
			continue
		}
		out = append(out, existing)
	}
	return out, nil
}
