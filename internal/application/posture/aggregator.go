package posture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/report"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
	"github.com/wardenhq/sitewarden/internal/domain/tenant"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
	"github.com/wardenhq/sitewarden/internal/shared/security"
)

// saveAttempts bounds the optimistic-concurrency retry loop. Normalization
// and scoring are pure, so replaying the merge with the same input is safe.
const saveAttempts = 3

// Aggregator is the stateful core: it normalizes raw detections, scores
// them, and merges the result into the tenant's living report while
// serializing updates per (companyID, agentID) key.
type Aggregator struct {
	reports report.Repository
	scans   scan.Repository
	agents  tenant.Directory
	locks   *keyedMutex
	logger  *zap.Logger
	now     func() time.Time
}

// NewAggregator wires the aggregation engine. logger may be nil.
func NewAggregator(reports report.Repository, scans scan.Repository, agents tenant.Directory, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		reports: reports,
		scans:   scans,
		agents:  agents,
		locks:   newKeyedMutex(),
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the aggregator's clock. Tests use this to ingest on
// synthetic calendar days.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// IngestResult reports the outcome of one accepted ingestion.
type IngestResult struct {
	ScanID     string      `json:"scanId"`
	Score      int         `json:"score"`
	Grade      issue.Grade `json:"grade"`
	IssueCount int         `json:"issueCount"`
	// Duplicate is true when a passive submission reused an existing scan
	// record for its session instead of being ingested again.
	Duplicate bool `json:"-"`
	// IngestedAt is the clock reading stamped on the scan record and the
	// report update, so callers report the same instant storage saw.
	IngestedAt time.Time `json:"-"`
}

// PassiveSubmission is a batch of detections pushed by the in-page collector.
type PassiveSubmission struct {
	CompanyID string           `json:"companyId"`
	AgentID   string           `json:"agentId"`
	SessionID string           `json:"sessionId"`
	PageURL   string           `json:"pageUrl"`
	Issues    []issue.RawIssue `json:"issues"`
	Meta      scan.Meta        `json:"meta"`
	UserAgent string           `json:"userAgent"`
}

func (s PassiveSubmission) validate() error {
	for _, f := range []struct{ name, value string }{
		{"companyId", s.CompanyID},
		{"agentId", s.AgentID},
		{"sessionId", s.SessionID},
	} {
		if strings.TrimSpace(f.value) == "" {
			return sharedErrors.NewValidation(f.name, "required")
		}
		if !security.IsSafeSegment(f.value) {
			return sharedErrors.NewValidation(f.name, "contains unsupported characters")
		}
	}
	if s.PageURL == "" {
		return sharedErrors.NewValidation("pageUrl", "required")
	}
	if _, err := url.Parse(s.PageURL); err != nil {
		return sharedErrors.NewValidation("pageUrl", "not a valid URL")
	}
	return nil
}

// IngestPassive accepts a submission from the in-page collector with
// at-most-once semantics per (companyID, sessionID): a repeated session is
// answered with the original scan record and the aggregator core runs zero
// times for it.
func (a *Aggregator) IngestPassive(ctx context.Context, sub PassiveSubmission) (*IngestResult, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	// Racing submissions of one session serialize here, so the dedup check
	// and the ingestion below act as a single logical step in-process. The
	// store's insert-if-absent invariant covers multi-process deployments.
	unlock := a.locks.Lock("session/" + sub.CompanyID + "/" + sub.SessionID)
	defer unlock()

	prior, err := a.scans.FindBySession(ctx, sub.CompanyID, sub.SessionID)
	if err != nil && !errors.Is(err, sharedErrors.ErrScanRecordNotFound) {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if prior != nil {
		summary := issue.Summarize(prior.Issues)
		return &IngestResult{
			ScanID:     prior.ScanID,
			Score:      issue.Score(prior.Issues),
			Grade:      issue.GradeFor(issue.Score(prior.Issues)),
			IssueCount: summary.Total,
			Duplicate:  true,
			IngestedAt: prior.CreatedAt,
		}, nil
	}

	now := a.now().UTC()
	normalized, score, grade, summary, err := a.ingest(ctx, sub.CompanyID, sub.AgentID, sub.Issues, now)
	if err != nil {
		return nil, err
	}

	rec := scan.NewRecord(sub.CompanyID, sub.AgentID, sub.SessionID, sub.PageURL, sub.UserAgent, scan.SourcePassive, normalized, sub.Meta, now)
	if err := a.scans.Insert(ctx, rec); err != nil {
		if errors.Is(err, sharedErrors.ErrDuplicateSession) {
			// Lost a cross-process race after aggregation; converge on the
			// record that won.
			if winner, ferr := a.scans.FindBySession(ctx, sub.CompanyID, sub.SessionID); ferr == nil {
				return &IngestResult{ScanID: winner.ScanID, Score: score, Grade: grade, IssueCount: summary.Total, Duplicate: true, IngestedAt: winner.CreatedAt}, nil
			}
		}
		return nil, fmt.Errorf("scan record write failed: %w", err)
	}

	a.logger.Info("passive scan ingested",
		zap.String("company_id", sub.CompanyID),
		zap.String("agent_id", sub.AgentID),
		zap.String("scan_id", rec.ScanID),
		zap.Int("score", score),
		zap.Int("issues", summary.Total),
	)
	return &IngestResult{ScanID: rec.ScanID, Score: score, Grade: grade, IssueCount: summary.Total, IngestedAt: now}, nil
}

// IngestActive accepts a server-driven scan result through the identical
// normalization, scoring, and merge path as passive submissions.
func (a *Aggregator) IngestActive(ctx context.Context, companyID, agentID, pageURL string, raw []issue.RawIssue, meta scan.Meta) (*IngestResult, []issue.Issue, error) {
	for _, f := range []struct{ name, value string }{
		{"companyId", companyID},
		{"agentId", agentID},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, nil, sharedErrors.NewValidation(f.name, "required")
		}
		if !security.IsSafeSegment(f.value) {
			return nil, nil, sharedErrors.NewValidation(f.name, "contains unsupported characters")
		}
	}

	now := a.now().UTC()
	normalized, score, grade, summary, err := a.ingest(ctx, companyID, agentID, raw, now)
	if err != nil {
		return nil, nil, err
	}

	rec := scan.NewRecord(companyID, agentID, "", pageURL, "", scan.SourceActive, normalized, meta, now)
	if err := a.scans.Insert(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("scan record write failed: %w", err)
	}

	a.logger.Info("active scan ingested",
		zap.String("company_id", companyID),
		zap.String("agent_id", agentID),
		zap.String("scan_id", rec.ScanID),
		zap.Int("score", score),
		zap.Int("issues", summary.Total),
	)
	return &IngestResult{ScanID: rec.ScanID, Score: score, Grade: grade, IssueCount: summary.Total, IngestedAt: now}, normalized, nil
}

// ingest runs the core pipeline: resolve tenant, normalize, score, and merge
// into the report under the per-key lock with bounded retries on conflicting
// writes. The report update is attempted before any scan record exists, so
// audit trail and live state never diverge by more than one ingestion.
func (a *Aggregator) ingest(ctx context.Context, companyID, agentID string, raw []issue.RawIssue, now time.Time) ([]issue.Issue, int, issue.Grade, issue.Summary, error) {
	if _, err := a.agents.ResolveAgent(ctx, companyID, agentID); err != nil {
		return nil, 0, "", issue.Summary{}, err
	}

	normalized := issue.NormalizeAll(raw, now)
	score := issue.Score(normalized)
	grade := issue.GradeFor(score)
	summary := issue.Summarize(normalized)

	unlock := a.locks.Lock("report/" + companyID + "/" + agentID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		rep, err := a.reports.Get(ctx, companyID, agentID)
		if errors.Is(err, sharedErrors.ErrReportNotFound) {
			rep = report.New(companyID, agentID, now)
		} else if err != nil {
			return nil, 0, "", issue.Summary{}, fmt.Errorf("report read failed: %w", err)
		}

		rep.RecordIngestion(now, normalized, score, grade, summary)

		err = a.reports.Save(ctx, rep)
		if err == nil {
			return normalized, score, grade, summary, nil
		}
		if !errors.Is(err, sharedErrors.ErrVersionConflict) {
			return nil, 0, "", issue.Summary{}, fmt.Errorf("report write failed: %w", err)
		}
		lastErr = err
		a.logger.Warn("report save conflict, retrying",
			zap.String("company_id", companyID),
			zap.String("agent_id", agentID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, 0, "", issue.Summary{}, fmt.Errorf("report update exhausted retries: %w", lastErr)
}
