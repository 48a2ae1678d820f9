package report

import "context"

// Repository persists the single living report per (companyID, agentID).
//
// Save is an upsert guarded by the report's Version: a save racing another
// writer returns errors.ErrVersionConflict so the caller can re-read and
// retry. Get returns errors.ErrReportNotFound when no report exists yet.
type Repository interface {
	Get(ctx context.Context, companyID, agentID string) (*Report, error)
	Save(ctx context.Context, rep *Report) error
	Delete(ctx context.Context, companyID, agentID string) error
}
