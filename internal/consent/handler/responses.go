package handler

import (
	"time"

	"aegis/internal/consent"
)

// GrantResponse is the HTTP response for POST /consents.
type GrantResponse struct {
	ConsentID string    `json:"consent_id"`
	GrantedAt time.Time `json:"granted_at"`
	Scope     string    `json:"scope"`
}

// RevokeResponse is the HTTP response for POST /consents/revoke.
type RevokeResponse struct {
	Success bool `json:"success"`
}

// ConsentResponse is one record in GET /consents/{client_id}.
type ConsentResponse struct {
	ConsentID string     `json:"consent_id"`
	Scope     string     `json:"scope"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// ListResponse is the HTTP response for GET /consents/{client_id}.
type ListResponse struct {
	Consents []ConsentResponse `json:"consents"`
}

// FromRecord converts a consent record to the grant response shape.
func FromRecord(record consent.Record) GrantResponse {
	return GrantResponse{
		ConsentID: record.ID.String(),
		GrantedAt: record.GrantedAt,
		Scope:     record.Scope.String(),
	}
}

// FromRecords converts consent records to the list response shape.
func FromRecords(records []consent.Record) ListResponse {
	out := make([]ConsentResponse, 0, len(records))
	for _, record := range records {
		out = append(out, ConsentResponse{
			ConsentID: record.ID.String(),
			Scope:     record.Scope.String(),
			GrantedAt: record.GrantedAt,
			RevokedAt: record.RevokedAt,
			Notes:     record.Notes,
		})
	}
	return ListResponse{Consents: out}
}
