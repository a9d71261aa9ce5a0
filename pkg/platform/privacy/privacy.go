// Package privacy provides value masking and hashing helpers used wherever a
// sensitive value must appear in output, logs, or audit records. Plaintext
// sensitive values must never leave the process through those paths.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const fullMask = "****"

// ssnPattern matches US-style SSN formatting (123-45-6789). These keep
// their grouping when masked so the last four digits stay recognizable.
var ssnPattern = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)

// MaskValue obscures a sensitive value for display.
// Values of length <= 4 are fully masked. SSN-shaped values keep the
// trailing group ("***-**-6789"). Everything else keeps the first and last
// character with the middle replaced.
func MaskValue(value string) string {
	if len(value) <= 4 {
		return fullMask
	}
	if ssnPattern.MatchString(value) {
		return "***-**-" + value[len(value)-4:]
	}
	runes := []rune(value)
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

// HashValue returns the SHA-256 hex digest of a value. Audit records carry
// these instead of plaintext so change detection works without exposure.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
