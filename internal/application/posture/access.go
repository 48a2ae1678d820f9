package posture

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wardenhq/sitewarden/internal/domain/report"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
)

// RecentScansLimit caps the scan summaries attached to a report view.
const RecentScansLimit = 5

// ReportView is the read-side shape: the current report plus its most recent
// scan records for drill-down.
type ReportView struct {
	Report      *report.Report `json:"report"`
	RecentScans []scan.Summary `json:"recentScans"`
}

// View returns the current report with up to RecentScansLimit recent scan
// summaries. It propagates errors.ErrReportNotFound when no scan has ever
// been ingested for the pair.
func (a *Aggregator) View(ctx context.Context, companyID, agentID string) (*ReportView, error) {
	rep, err := a.reports.Get(ctx, companyID, agentID)
	if err != nil {
		return nil, err
	}

	records, err := a.scans.ListRecent(ctx, companyID, agentID, RecentScansLimit)
	if err != nil {
		return nil, fmt.Errorf("recent scans lookup failed: %w", err)
	}

	summaries := make([]scan.Summary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, rec.Summarize())
	}
	return &ReportView{Report: rep, RecentScans: summaries}, nil
}

// Reset hard-deletes the report and every scan record for the tenant/agent
// pair. Destructive and irreversible; callers gate this on owner authority.
func (a *Aggregator) Reset(ctx context.Context, companyID, agentID string) error {
	unlock := a.locks.Lock("report/" + companyID + "/" + agentID)
	defer unlock()

	if err := a.reports.Delete(ctx, companyID, agentID); err != nil {
		return fmt.Errorf("report delete failed: %w", err)
	}
	if err := a.scans.DeleteByAgent(ctx, companyID, agentID); err != nil {
		return fmt.Errorf("scan record purge failed: %w", err)
	}

	a.logger.Info("report reset",
		zap.String("company_id", companyID),
		zap.String("agent_id", agentID),
	)
	return nil
}
