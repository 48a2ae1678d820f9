package scan

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
)

// Source identifies which gateway produced a scan record.
type Source string

const (
	// SourcePassive marks submissions pushed by the in-page collector script.
	SourcePassive Source = "passive"
	// SourceActive marks scans driven server-side through a headless browser
	// or HTTP probe.
	SourceActive Source = "active"
)

// Meta carries page-level counts reported alongside a scan.
type Meta struct {
	Protocol    string `json:"protocol,omitempty"`
	FormCount   int    `json:"formCount"`
	CookieCount int    `json:"cookieCount"`
	ScriptCount int    `json:"scriptCount"`
}

// Record is one immutable ingestion event. It exists for session dedup and
// the audit/history drill-down; it is never mutated after creation and only
// removed by an explicit tenant reset.
type Record struct {
	ScanID    string        `json:"scanId"`
	CompanyID string        `json:"companyId"`
	AgentID   string        `json:"agentId"`
	SessionID string        `json:"sessionId,omitempty"`
	PageURL   string        `json:"pageUrl"`
	Source    Source        `json:"source"`
	Issues    []issue.Issue `json:"issues"`
	Meta      Meta          `json:"meta"`
	UserAgent string        `json:"userAgent,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Summary is the trimmed record shape returned by the report access API.
type Summary struct {
	ScanID     string    `json:"scanId"`
	PageURL    string    `json:"pageUrl"`
	IssueCount int       `json:"issueCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewRecord creates an immutable scan record for an accepted submission.
func NewRecord(companyID, agentID, sessionID, pageURL, userAgent string, source Source, issues []issue.Issue, meta Meta, createdAt time.Time) *Record {
	return &Record{
		ScanID:    generateScanID(),
		CompanyID: companyID,
		AgentID:   agentID,
		SessionID: sessionID,
		PageURL:   pageURL,
		Source:    source,
		Issues:    issues,
		Meta:      meta,
		UserAgent: userAgent,
		CreatedAt: createdAt,
	}
}

// Summarize converts a record to its API summary shape.
func (r *Record) Summarize() Summary {
	return Summary{
		ScanID:     r.ScanID,
		PageURL:    r.PageURL,
		IssueCount: len(r.Issues),
		CreatedAt:  r.CreatedAt,
	}
}

func generateScanID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "scan_fallback"
	}
	return "scan_" + hex.EncodeToString(b)
}
