package consent

import (
	"time"

	"github.com/google/uuid"

	id "aegis/pkg/domain"
)

// Record captures a client's consent decision for one scope. At most one
// active (revoked_at IS NULL) record exists per (client, scope) pair; the
// store enforces this atomically.
type Record struct {
	ID        uuid.UUID
	ClientID  id.SubjectID
	Scope     id.Scope
	GrantedAt time.Time
	RevokedAt *time.Time
	GrantedBy id.SubjectID
	Notes     string
}

// Active reports whether the consent is currently in force.
func (r Record) Active() bool { return r.RevokedAt == nil }
