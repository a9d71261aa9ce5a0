package audit

import (
	"time"

	id "aegis/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: consent changes, sensitive field access, key lifecycle.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: authorization denials, decryption failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: routine permission evaluations, consent checks.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// BeforeHash/AfterHash are SHA-256 hex digests of field values around a
// sensitive-field change. Plaintext never enters an audit record.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	ActorID    id.SubjectID
	SubjectID  id.SubjectID
	Action     string
	Resource   string
	ResourceID string
	Scope      string
	Decision   string
	Reason     string
	BeforeHash string
	AfterHash  string
	RequestID  string
}

type AuditEvent string

const (
	// Consent events
	EventConsentGranted AuditEvent = "consent_granted"
	EventConsentRevoked AuditEvent = "consent_revoked"
	EventConsentChecked AuditEvent = "consent_checked"

	// Field protection events
	EventFieldDecrypted      AuditEvent = "field_decrypted"
	EventSensitiveFieldWrite AuditEvent = "sensitive_field_changed"
	EventDecryptionFailed    AuditEvent = "decryption_failed"

	// Key lifecycle events
	EventKeyCreated AuditEvent = "encryption_key_created"
	EventKeyRotated AuditEvent = "encryption_key_rotated"

	// Policy events
	EventPermissionEvaluated AuditEvent = "permission_evaluated"
	EventPermissionDenied    AuditEvent = "permission_denied"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	EventConsentGranted:      CategoryCompliance,
	EventConsentRevoked:      CategoryCompliance,
	EventFieldDecrypted:      CategoryCompliance,
	EventSensitiveFieldWrite: CategoryCompliance,
	EventKeyCreated:          CategoryCompliance,
	EventKeyRotated:          CategoryCompliance,

	EventDecryptionFailed: CategorySecurity,
	EventPermissionDenied: CategorySecurity,

	EventConsentChecked:      CategoryOperations,
	EventPermissionEvaluated: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
