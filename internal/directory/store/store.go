package store

import (
	"context"

	"aegis/internal/directory"
	id "aegis/pkg/domain"
)

// Store is the read-only contract over the users and membership collections.
type Store interface {
	GetUser(ctx context.Context, subjectID id.SubjectID) (*directory.User, error)
	ListMemberships(ctx context.Context, subjectID id.SubjectID) ([]directory.MembershipRecord, error)
}
