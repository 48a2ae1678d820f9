package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/sitewarden/internal/domain/report"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

// ReportRepository implements report.Repository on PostgreSQL. The version
// column carries the optimistic-concurrency token; a conditional UPDATE
// detects racing writers without row locks.
type ReportRepository struct {
	db *DB
}

// NewReportRepository returns a repository backed by db.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Get implements report.Repository.
func (r *ReportRepository) Get(ctx context.Context, companyID, agentID string) (*report.Report, error) {
	var (
		rep         report.Report
		summaryJSON []byte
		issuesJSON  []byte
		historyJSON []byte
		lastScanAt  *time.Time
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT report_id, score, grade, scan_count, issues_summary, latest_issues,
		       score_history, last_scan_at, created_at, updated_at, version
		FROM reports
		WHERE company_id = $1 AND agent_id = $2
	`, companyID, agentID).Scan(
		&rep.ReportID, &rep.Score, &rep.Grade, &rep.ScanCount, &summaryJSON, &issuesJSON,
		&historyJSON, &lastScanAt, &rep.CreatedAt, &rep.UpdatedAt, &rep.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sharedErrors.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query report: %v", sharedErrors.ErrRepositoryOperation, err)
	}

	rep.CompanyID = companyID
	rep.AgentID = agentID
	if lastScanAt != nil {
		rep.LastScanAt = *lastScanAt
	}
	if err := json.Unmarshal(summaryJSON, &rep.IssuesSummary); err != nil {
		return nil, fmt.Errorf("%w: decode issues summary: %v", sharedErrors.ErrInvalidData, err)
	}
	if err := json.Unmarshal(issuesJSON, &rep.LatestIssues); err != nil {
		return nil, fmt.Errorf("%w: decode latest issues: %v", sharedErrors.ErrInvalidData, err)
	}
	if err := json.Unmarshal(historyJSON, &rep.ScoreHistory); err != nil {
		return nil, fmt.Errorf("%w: decode score history: %v", sharedErrors.ErrInvalidData, err)
	}
	return &rep, nil
}

// Save implements report.Repository. A report with Version zero must insert a
// new row; any version mismatch, including a row appearing underneath a fresh
// report, surfaces as ErrVersionConflict.
func (r *ReportRepository) Save(ctx context.Context, rep *report.Report) error {
	summaryJSON, err := json.Marshal(rep.IssuesSummary)
	if err != nil {
		return fmt.Errorf("%w: encode issues summary: %v", sharedErrors.ErrInvalidData, err)
	}
	issuesJSON, err := json.Marshal(rep.LatestIssues)
	if err != nil {
		return fmt.Errorf("%w: encode latest issues: %v", sharedErrors.ErrInvalidData, err)
	}
	historyJSON, err := json.Marshal(rep.ScoreHistory)
	if err != nil {
		return fmt.Errorf("%w: encode score history: %v", sharedErrors.ErrInvalidData, err)
	}

	var lastScanAt *time.Time
	if !rep.LastScanAt.IsZero() {
		lastScanAt = &rep.LastScanAt
	}

	if rep.Version == 0 {
		tag, err := r.db.Pool.Exec(ctx, `
			INSERT INTO reports (company_id, agent_id, report_id, score, grade, scan_count,
				issues_summary, latest_issues, score_history, last_scan_at,
				created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
			ON CONFLICT (company_id, agent_id) DO NOTHING
		`, rep.CompanyID, rep.AgentID, rep.ReportID, rep.Score, rep.Grade, rep.ScanCount,
			summaryJSON, issuesJSON, historyJSON, lastScanAt, rep.CreatedAt, rep.UpdatedAt)
		if err != nil {
			return fmt.Errorf("%w: insert report: %v", sharedErrors.ErrRepositoryOperation, err)
		}
		if tag.RowsAffected() == 0 {
			return sharedErrors.ErrVersionConflict
		}
		rep.Version = 1
		return nil
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE reports
		SET score = $3, grade = $4, scan_count = $5, issues_summary = $6,
		    latest_issues = $7, score_history = $8, last_scan_at = $9,
		    updated_at = $10, version = version + 1
		WHERE company_id = $1 AND agent_id = $2 AND version = $11
	`, rep.CompanyID, rep.AgentID, rep.Score, rep.Grade, rep.ScanCount,
		summaryJSON, issuesJSON, historyJSON, lastScanAt, rep.UpdatedAt, rep.Version)
	if err != nil {
		return fmt.Errorf("%w: update report: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if tag.RowsAffected() == 0 {
		return sharedErrors.ErrVersionConflict
	}
	rep.Version++
	return nil
}

// Delete implements report.Repository. Deleting an absent report is not an
// error.
func (r *ReportRepository) Delete(ctx context.Context, companyID, agentID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		DELETE FROM reports WHERE company_id = $1 AND agent_id = $2
	`, companyID, agentID)
	if err != nil {
		return fmt.Errorf("%w: delete report: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}
