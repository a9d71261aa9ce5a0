package handler

import (
	"strings"

	"aegis/internal/access"
	id "aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

// EvaluateRequest is the HTTP request body for POST /access/evaluate.
type EvaluateRequest struct {
	SubjectID    string `json:"subject_id"`
	Permission   string `json:"permission"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`

	// Parsed values (populated by Validate)
	parsedSubjectID  id.SubjectID
	parsedPermission access.Permission
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.SubjectID = strings.TrimSpace(r.SubjectID)
	if r.SubjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	subjectID, err := id.ParseSubjectID(r.SubjectID)
	if err != nil {
		return err
	}
	r.parsedSubjectID = subjectID

	r.Permission = strings.TrimSpace(r.Permission)
	if r.Permission == "" {
		return dErrors.New(dErrors.CodeValidation, "permission is required")
	}
	permission, err := access.ParsePermission(r.Permission)
	if err != nil {
		return err
	}
	r.parsedPermission = permission

	r.ResourceType = strings.TrimSpace(r.ResourceType)
	if r.ResourceType == "" {
		return dErrors.New(dErrors.CodeValidation, "resource_type is required")
	}
	r.ResourceID = strings.TrimSpace(r.ResourceID)

	return nil
}

// ParsedSubjectID returns the validated subject id.
func (r *EvaluateRequest) ParsedSubjectID() id.SubjectID {
	return r.parsedSubjectID
}

// ParsedPermission returns the validated permission.
func (r *EvaluateRequest) ParsedPermission() access.Permission {
	return r.parsedPermission
}
