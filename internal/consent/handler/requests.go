package handler

import (
	"strings"

	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

const maxNotesLength = 1000

// GrantRequest is the HTTP request body for POST /consents.
type GrantRequest struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	Notes    string `json:"notes"`

	parsedClientID id.SubjectID
	parsedScope    id.Scope
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.Newf(dErrors.CodeValidation, "notes must be at most %d characters", maxNotesLength)
	}
	clientID, scope, err := parseClientScope(r.ClientID, r.Scope)
	if err != nil {
		return err
	}
	r.parsedClientID = clientID
	r.parsedScope = scope
	return nil
}

func (r *GrantRequest) ParsedClientID() id.SubjectID { return r.parsedClientID }
func (r *GrantRequest) ParsedScope() id.Scope        { return r.parsedScope }

// RevokeRequest is the HTTP request body for POST /consents/revoke.
type RevokeRequest struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`

	parsedClientID id.SubjectID
	parsedScope    id.Scope
}

// Validate validates and parses the request.
func (r *RevokeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	clientID, scope, err := parseClientScope(r.ClientID, r.Scope)
	if err != nil {
		return err
	}
	r.parsedClientID = clientID
	r.parsedScope = scope
	return nil
}

func (r *RevokeRequest) ParsedClientID() id.SubjectID { return r.parsedClientID }
func (r *RevokeRequest) ParsedScope() id.Scope        { return r.parsedScope }

func parseClientScope(rawClientID, rawScope string) (id.SubjectID, id.Scope, error) {
	rawClientID = strings.TrimSpace(rawClientID)
	if rawClientID == "" {
		return id.SubjectID{}, "", dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	clientID, err := id.ParseSubjectID(rawClientID)
	if err != nil {
		return id.SubjectID{}, "", err
	}

	rawScope = strings.TrimSpace(rawScope)
	if rawScope == "" {
		return id.SubjectID{}, "", dErrors.New(dErrors.CodeValidation, "scope is required")
	}
	scope, err := id.ParseScope(rawScope)
	if err != nil {
		return id.SubjectID{}, "", err
	}
	return clientID, scope, nil
}
