package issue

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Severity buckets an issue by impact. The catalog is the authority for the
// severity of every known issue type; detector-supplied severities are only a
// fallback for types the catalog does not know.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists all valid severities from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// ParseSeverity normalizes a detector-supplied severity string. Unknown or
// empty values fall back to info so a malformed payload can never inflate a
// deduction.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Issue is one normalized detected weakness. Severity and guidance text come
// from the catalog whenever the type is known; the detector only contributes
// evidence (type, details).
type Issue struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Severity       Severity  `json:"severity"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
	Details        string    `json:"details,omitempty"`
	DetectedAt     time.Time `json:"detectedAt"`
}

// RawIssue is an untrusted detection as submitted by a collector. Everything
// except Type and Details is discarded for catalog-known types.
type RawIssue struct {
	Type           string `json:"type"`
	Severity       string `json:"severity,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Details        string `json:"details,omitempty"`
}

// generateIssueID returns a random identifier for ad hoc issues whose type is
// not in the catalog.
func generateIssueID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "issue_unknown"
	}
	return "issue_" + hex.EncodeToString(b)
}
