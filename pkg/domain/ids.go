// Package domain holds small domain value types shared across bounded
// contexts. Values are validated at trust boundaries via their Parse
// constructors; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "aegis/pkg/domain-errors"
)

// SubjectID identifies an authenticated subject (platform user or client
// contact). Backed by a UUID.
type SubjectID uuid.UUID

// OrgID identifies an organization.
type OrgID uuid.UUID

// ParseSubjectID validates and converts a string into a SubjectID.
func ParseSubjectID(s string) (SubjectID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return SubjectID{}, dErrors.New(dErrors.CodeValidation, "subject id must be a valid UUID")
	}
	return SubjectID(parsed), nil
}

// ParseOrgID validates and converts a string into an OrgID.
func ParseOrgID(s string) (OrgID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return OrgID{}, dErrors.New(dErrors.CodeValidation, "organization id must be a valid UUID")
	}
	return OrgID(parsed), nil
}

func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id SubjectID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id OrgID) String() string { return uuid.UUID(id).String() }
func (id OrgID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
