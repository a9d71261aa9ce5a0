// Package directory reads the platform's user and organization-membership
// records. This core never writes them; it only builds per-request
// principals from them.
package directory

import (
	id "aegis/pkg/domain"
)

// User statuses this core cares about. Anything but active fails closed.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// User is the read-only projection of a platform user.
type User struct {
	ID           id.SubjectID `json:"id"`
	Status       string       `json:"status"`
	PrimaryOrgID id.OrgID     `json:"primary_org_id"`
	Roles        []string     `json:"roles"`
}

// MembershipRecord is one organization-role tuple for a subject.
type MembershipRecord struct {
	OrgID id.OrgID `json:"org_id"`
	Roles []string `json:"roles"`
}
