package finding

import "strings"

// Severity represents the severity level of a finding.
// All values are lowercase strings.
type Severity string

const (
	// Critical represents credentials that grant direct access (live payment
	// keys, private keys, database URIs with passwords).
	Critical Severity = "critical"

	// High represents credentials with significant scope (provider tokens,
	// webhooks, JWTs).
	High Severity = "high"

	// Medium represents credentials that need context to be abused.
	Medium Severity = "medium"

	// Low represents weak hints and publishable identifiers.
	Low Severity = "low"

	// Info represents informational findings with no direct security impact.
	Info Severity = "info"
)

// All returns the ordered severity scale, most severe first.
func All() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// Parse converts s to a Severity, case-insensitively.
// Unknown values map to Info.
func Parse(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.IsValid() {
		return sev
	}
	return Info
}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Rank returns the sort rank of s: Critical=0, High=1, Medium=2, Low=3,
// Info=4, unknown=5. Lower ranks sort first.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 0
	case High:
		return 1
	case Medium:
		return 2
	case Low:
		return 3
	case Info:
		return 4
	default:
		return 5
	}
}

// Score returns a numeric score for comparisons where higher is worse.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// ToSARIF maps severity to SARIF result level.
// Critical/High → error, Medium → warning, Low/Info → note.
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/
func (s Severity) ToSARIF() string {
	switch s {
	case Critical, High:
		return "error"
	case Medium:
		return "warning"
	default:
		return "note"
	}
}

// ToSARIFScore maps severity to GitHub security-severity score.
func (s Severity) ToSARIFScore() string {
	switch s {
	case Critical:
		return "9.5"
	case High:
		return "8.0"
	case Medium:
		return "5.5"
	case Low:
		return "2.0"
	default:
		return "0.0"
	}
}
