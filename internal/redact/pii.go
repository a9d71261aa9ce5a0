package redact

import (
	"strings"

	"aegis/pkg/platform/privacy"
)

// piiKeyNames is the fixed heuristic for key names that carry personally
// identifying data regardless of resource type.
var piiKeyNames = []string{
	"ssn",
	"social_security",
	"tax_id",
	"national_id",
	"passport",
	"email",
	"phone",
	"address",
	"date_of_birth",
	"dob",
	"bank_account",
	"credit_card",
}

// isPIIKey reports whether a key name matches the PII heuristic. Matching is
// case-insensitive and includes compound names ("work_email", "phone_number").
func isPIIKey(key string) bool {
	lower := strings.ToLower(key)
	for _, name := range piiKeyNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// MaskPIITree walks a generic tree-shaped value (maps, lists, scalars) and
// masks the value of every key matching the PII-name heuristic. Pure
// function: input is never mutated, the returned tree shares only unchanged
// scalars with it.
func MaskPIITree(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if isPIIKey(key) {
				out[key] = maskScalar(child)
				continue
			}
			out[key] = MaskPIITree(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = MaskPIITree(child)
		}
		return out
	default:
		return value
	}
}

// maskScalar masks a single value. Non-string values under a PII key are
// fully masked since partial masking of structured data leaks shape.
func maskScalar(value any) any {
	if s, ok := value.(string); ok {
		return privacy.MaskValue(s)
	}
	return "****"
}
