package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aegis/internal/consent"
	id "aegis/pkg/domain"
)

// Store persists consent records. GrantIfAbsent must be atomic with respect
// to concurrent grants for the same (client, scope) pair: exactly one record
// may be active at a time, and the loser of a race receives the winner's
// record with created=false.
//
// Revoke reports the id of the record it tombstoned so callers can reference
// it in audit trails; revoked=false means no active record existed.
type Store interface {
	GrantIfAbsent(ctx context.Context, record consent.Record) (consent.Record, bool, error)
	FindActive(ctx context.Context, clientID id.SubjectID, scope id.Scope) (*consent.Record, error)
	Revoke(ctx context.Context, clientID id.SubjectID, scope id.Scope, revokedAt time.Time) (uuid.UUID, bool, error)
	ListByClient(ctx context.Context, clientID id.SubjectID, includeRevoked bool) ([]consent.Record, error)
}
