// Package redact produces permission-filtered output documents. A principal
// without sensitive-data access sees the per-resource-type sensitive fields
// masked plus a recursive PII-name sweep over the whole document.
package redact

import (
	"context"
	"log/slog"

	"aegis/internal/access"
	id "aegis/pkg/domain"
)

// Evaluator is the policy decision surface the redactor needs.
// *service.Service satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, principal access.Principal, perm access.Permission, resource access.Resource) access.Decision
}

// sensitiveFields is the fixed per-resource-type list masked when the
// principal lacks sensitive-data access.
var sensitiveFields = map[string][]string{
	access.ResourceClientProfile: {"tax_id", "bank_account", "annual_revenue", "ssn"},
	access.ResourceAssessment:    {"assessment_score", "financial_summary", "risk_notes"},
	access.ResourceOrder:         {"payment_details", "bank_account"},
}

// Redactor shapes documents according to the caller's permissions.
type Redactor struct {
	evaluator Evaluator
	logger    *slog.Logger
}

func NewRedactor(evaluator Evaluator, logger *slog.Logger) *Redactor {
	return &Redactor{evaluator: evaluator, logger: logger}
}

// RedactDocument evaluates sensitive-data access for the principal against a
// Resource built from the document, and masks when denied. An allowed
// principal receives the document unchanged.
func (r *Redactor) RedactDocument(ctx context.Context, doc map[string]any, resourceType string, principal access.Principal, resourceID string) map[string]any {
	resource := resourceFromDocument(doc, resourceType, resourceID)
	decision := r.evaluator.Evaluate(ctx, principal, access.PermViewSensitive, resource)
	if decision.Allowed {
		return doc
	}

	r.logger.DebugContext(ctx, "redacting document",
		"resource_type", resourceType,
		"resource_id", resource.ID,
		"subject_id", principal.ID,
		"reason", decision.Reason,
	)

	masked, _ := MaskPIITree(doc).(map[string]any)

	// The recursive sweep already covered PII-named keys; masking twice
	// would destroy the recognizable "***-**-6789" form.
	for _, field := range sensitiveFields[resourceType] {
		if isPIIKey(field) {
			continue
		}
		value, ok := masked[field]
		if !ok || value == nil {
			continue
		}
		masked[field] = maskScalar(value)
	}
	return masked
}

// RedactDocumentList applies RedactDocument per document. Each document
// carries its own org and owner attributes, so each gets its own decision.
func (r *Redactor) RedactDocumentList(ctx context.Context, docs []map[string]any, resourceType string, principal access.Principal) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		out[i] = r.RedactDocument(ctx, doc, resourceType, principal, "")
	}
	return out
}

// resourceFromDocument builds the policy Resource from conventional document
// fields. Missing or malformed attributes stay at their zero values, which
// the checker chain treats as "not org-scoped" / "ownership not applicable".
func resourceFromDocument(doc map[string]any, resourceType, resourceID string) access.Resource {
	resource := access.Resource{Type: resourceType, ID: resourceID, Metadata: doc}
	if resource.ID == "" {
		if docID, ok := doc["id"].(string); ok {
			resource.ID = docID
		}
	}
	if raw, ok := doc["organization_id"].(string); ok {
		if orgID, err := id.ParseOrgID(raw); err == nil {
			resource.OrgID = orgID
		}
	}
	for _, key := range []string{"owner_id", "client_id"} {
		raw, ok := doc[key].(string)
		if !ok {
			continue
		}
		if ownerID, err := id.ParseSubjectID(raw); err == nil {
			resource.OwnerID = ownerID
			break
		}
	}
	return resource
}
