package issue

import "time"

// CatalogEntry holds the canonical severity and guidance text for one issue
// type code.
type CatalogEntry struct {
	Type           string
	Severity       Severity
	Title          string
	Description    string
	Recommendation string
}

// catalog is the fixed table of client-observable weaknesses the scanner
// detects. Collectors reference these type codes; the catalog, not the
// collector, decides what a detection means.
var catalog = map[string]CatalogEntry{
	"https_missing": {
		Type:           "https_missing",
		Severity:       SeverityCritical,
		Title:          "Site not served over HTTPS",
		Description:    "The page was loaded over plain HTTP, so all traffic between visitors and the site can be read or altered in transit.",
		Recommendation: "Obtain a TLS certificate and redirect all HTTP traffic to HTTPS.",
	},
	"insecure_forms": {
		Type:           "insecure_forms",
		Severity:       SeverityHigh,
		Title:          "Form submits over an insecure connection",
		Description:    "One or more forms post their data to an http:// endpoint, exposing submitted values (including credentials) to interception.",
		Recommendation: "Change every form action to an https:// URL and serve the page itself over HTTPS.",
	},
	"mixed_content": {
		Type:           "mixed_content",
		Severity:       SeverityHigh,
		Title:          "Mixed content on an HTTPS page",
		Description:    "The page is served over HTTPS but loads scripts, styles, or images over plain HTTP, which browsers may block and attackers can tamper with.",
		Recommendation: "Load all sub-resources over HTTPS or use protocol-relative URLs pointing at HTTPS-capable hosts.",
	},
	"old_jquery": {
		Type:           "old_jquery",
		Severity:       SeverityMedium,
		Title:          "Outdated jQuery version",
		Description:    "The page includes a jQuery build with publicly known XSS vulnerabilities.",
		Recommendation: "Upgrade jQuery to version 3.5.0 or later.",
	},
	"outdated_library": {
		Type:           "outdated_library",
		Severity:       SeverityMedium,
		Title:          "Outdated JavaScript library",
		Description:    "The page includes a third-party JavaScript library version with known security advisories.",
		Recommendation: "Upgrade the affected library to its latest patched release.",
	},
	"cookie_flags": {
		Type:           "cookie_flags",
		Severity:       SeverityMedium,
		Title:          "Cookies missing Secure/HttpOnly flags",
		Description:    "Cookies are set without the Secure or HttpOnly attributes, leaving them readable by injected scripts or over plain HTTP.",
		Recommendation: "Set Secure, HttpOnly, and an appropriate SameSite attribute on every cookie.",
	},
	"clickjacking": {
		Type:           "clickjacking",
		Severity:       SeverityMedium,
		Title:          "Page can be framed by other sites",
		Description:    "Neither X-Frame-Options nor a frame-ancestors CSP directive is present, so the page can be embedded in a hostile frame for clickjacking.",
		Recommendation: "Send X-Frame-Options: DENY or a Content-Security-Policy frame-ancestors directive.",
	},
	"third_party_scripts": {
		Type:           "third_party_scripts",
		Severity:       SeverityLow,
		Title:          "Excessive third-party scripts",
		Description:    "The page loads a large number of scripts from external origins, widening the supply-chain attack surface.",
		Recommendation: "Audit third-party scripts and remove or self-host the ones that are not essential.",
	},
}

// Lookup returns the catalog entry for a type code.
func Lookup(typeCode string) (CatalogEntry, bool) {
	entry, ok := catalog[typeCode]
	return entry, ok
}

// CatalogTypes returns every type code the catalog knows, for diagnostics.
func CatalogTypes() []string {
	types := make([]string, 0, len(catalog))
	for t := range catalog {
		types = append(types, t)
	}
	return types
}

// Normalize converts an untrusted raw detection into a typed Issue. Known
// types take severity and all guidance text from the catalog; Details is the
// only detector field that survives. Unknown types pass through with their
// raw fields so an issue is never dropped, with severity falling back
// through ParseSeverity. detectedAt is assigned here, never by the client.
func Normalize(raw RawIssue, detectedAt time.Time) Issue {
	if entry, ok := Lookup(raw.Type); ok {
		return Issue{
			ID:             entry.Type,
			Type:           entry.Type,
			Severity:       entry.Severity,
			Title:          entry.Title,
			Description:    entry.Description,
			Recommendation: entry.Recommendation,
			Details:        raw.Details,
			DetectedAt:     detectedAt,
		}
	}

	id := raw.Type
	if id == "" {
		id = generateIssueID()
	}
	return Issue{
		ID:             id,
		Type:           raw.Type,
		Severity:       ParseSeverity(raw.Severity),
		Title:          raw.Title,
		Description:    raw.Description,
		Recommendation: raw.Recommendation,
		Details:        raw.Details,
		DetectedAt:     detectedAt,
	}
}

// NormalizeAll applies Normalize to a batch, preserving order.
func NormalizeAll(raw []RawIssue, detectedAt time.Time) []Issue {
	issues := make([]Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, Normalize(r, detectedAt))
	}
	return issues
}
