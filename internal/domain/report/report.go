package report

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
)

// HistoryLimit caps the rolling score history. It is a hard entry bound, not
// a time window: with sparse ingestion the entries can span far more than 30
// days. Insertion past the cap evicts the oldest entry.
const HistoryLimit = 30

// DayKeyFormat renders the fixed calendar-day key. Day boundaries are UTC.
const DayKeyFormat = "2006-01-02"

// DayKey returns the UTC calendar-day key for a timestamp.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyFormat)
}

// HistoryEntry is one calendar day's score in the rolling window. At most one
// entry exists per day and the slice is ordered by date ascending.
type HistoryEntry struct {
	Date  string      `json:"date"`
	Score int         `json:"score"`
	Grade issue.Grade `json:"grade"`
}

// Report is the single current-state security posture aggregate per
// (companyID, agentID). IssuesSummary and LatestIssues always reflect the
// most recent ingestion only; ScoreHistory is the sole field that
// accumulates across time.
type Report struct {
	ReportID      string         `json:"reportId"`
	CompanyID     string         `json:"companyId"`
	AgentID       string         `json:"agentId"`
	Score         int            `json:"score"`
	Grade         issue.Grade    `json:"grade"`
	IssuesSummary issue.Summary  `json:"issuesSummary"`
	LatestIssues  []issue.Issue  `json:"latestIssues"`
	ScanCount     int            `json:"scanCount"`
	LastScanAt    time.Time      `json:"lastScanAt"`
	ScoreHistory  []HistoryEntry `json:"scoreHistory"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	// Version is the optimistic-concurrency token managed by the repository.
	// Zero means the report has never been persisted.
	Version int `json:"-"`
}

// New creates the aggregate for a tenant/agent pair's first ingestion.
func New(companyID, agentID string, now time.Time) *Report {
	return &Report{
		ReportID:  generateReportID(),
		CompanyID: companyID,
		AgentID:   agentID,
		Score:     100,
		Grade:     issue.GradeA,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordIngestion merges one normalized ingestion into the aggregate.
//
// The current score, grade, summary, and latest issues are fully replaced (a
// window of one). The history entry for today's UTC day is replaced in place
// when present so same-day rescans never inflate history length; otherwise a
// new entry is appended and, past HistoryLimit, the oldest entry is evicted.
// ScanCount counts ingestions, so it increments even on same-day rescans.
func (r *Report) RecordIngestion(now time.Time, issues []issue.Issue, score int, grade issue.Grade, summary issue.Summary) {
	today := DayKey(now)

	replaced := false
	for i := range r.ScoreHistory {
		if r.ScoreHistory[i].Date == today {
			r.ScoreHistory[i].Score = score
			r.ScoreHistory[i].Grade = grade
			replaced = true
			break
		}
	}
	if !replaced {
		r.ScoreHistory = append(r.ScoreHistory, HistoryEntry{Date: today, Score: score, Grade: grade})
		if len(r.ScoreHistory) > HistoryLimit {
			r.ScoreHistory = r.ScoreHistory[len(r.ScoreHistory)-HistoryLimit:]
		}
	}

	r.Score = score
	r.Grade = grade
	r.IssuesSummary = summary
	r.LatestIssues = issues
	r.ScanCount++
	r.LastScanAt = now
	r.UpdatedAt = now
}

func generateReportID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "rpt_fallback"
	}
	return "rpt_" + hex.EncodeToString(b)
}
