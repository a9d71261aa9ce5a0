package redact

import (
	"sort"

	dErrors "aegis/pkg/domain-errors"
)

// Preset names a key-name allow-list for low-sensitivity display contexts.
// Presets filter by key name only, with no permission evaluation; anything
// that may carry sensitive data must go through RedactDocument instead.
type Preset string

const (
	PresetPublic   Preset = "public"
	PresetInternal Preset = "internal"
	PresetAdmin    Preset = "admin"
)

// presetAllowLists maps presets to the top-level keys they pass through.
// The admin preset has no list: it passes everything.
var presetAllowLists = map[Preset]map[string]bool{
	PresetPublic: {
		"id":         true,
		"name":       true,
		"status":     true,
		"created_at": true,
	},
	PresetInternal: {
		"id":               true,
		"name":             true,
		"status":           true,
		"created_at":       true,
		"updated_at":       true,
		"organization_id":  true,
		"client_id":        true,
		"assessment_score": true,
		"assigned_to":      true,
	},
	PresetAdmin: nil,
}

// ParsePreset validates a preset name.
func ParsePreset(s string) (Preset, error) {
	preset := Preset(s)
	if _, ok := presetAllowLists[preset]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown preset %q", s)
	}
	return preset, nil
}

// Presets returns the known preset names.
func Presets() []string {
	names := make([]string, 0, len(presetAllowLists))
	for preset := range presetAllowLists {
		names = append(names, string(preset))
	}
	sort.Strings(names)
	return names
}

// ApplyPreset filters a document to the preset's allowed top-level keys.
func ApplyPreset(doc map[string]any, preset Preset) map[string]any {
	allowed := presetAllowLists[preset]
	if allowed == nil {
		out := make(map[string]any, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any)
	for k, v := range doc {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}
