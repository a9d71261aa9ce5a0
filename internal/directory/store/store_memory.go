package store

import (
	"context"
	"sync"

	"aegis/internal/directory"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// MemoryStore holds users and memberships in process memory. Used in tests
// and single-process development.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[id.SubjectID]directory.User
	memberships map[id.SubjectID][]directory.MembershipRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[id.SubjectID]directory.User),
		memberships: make(map[id.SubjectID][]directory.MembershipRecord),
	}
}

// PutUser seeds a user record. Test and bootstrap helper.
func (s *MemoryStore) PutUser(user directory.User, memberships ...directory.MembershipRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	s.memberships[user.ID] = memberships
}

func (s *MemoryStore) GetUser(_ context.Context, subjectID id.SubjectID) (*directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (s *MemoryStore) ListMemberships(_ context.Context, subjectID id.SubjectID) ([]directory.MembershipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]directory.MembershipRecord{}, s.memberships[subjectID]...), nil
}
