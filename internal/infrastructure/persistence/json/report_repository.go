package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/report"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
	"github.com/wardenhq/sitewarden/internal/shared/security"
)

// reportDTO is the data transfer object for JSON serialization
type reportDTO struct {
	ReportID      string            `json:"report_id"`
	CompanyID     string            `json:"company_id"`
	AgentID       string            `json:"agent_id"`
	Score         int               `json:"score"`
	Grade         string            `json:"grade"`
	IssuesSummary issue.Summary     `json:"issues_summary"`
	LatestIssues  []issue.Issue     `json:"latest_issues"`
	ScanCount     int               `json:"scan_count"`
	LastScanAt    string            `json:"last_scan_at,omitempty"`
	ScoreHistory  []historyEntryDTO `json:"score_history"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
	Version       int               `json:"version"`
}

type historyEntryDTO struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// ReportRepository implements report.Repository using one JSON file per
// tenant/agent pair under <dataDir>/reports/<companyID>/<agentID>.json.
type ReportRepository struct {
	reportsDir string
	mu         sync.RWMutex
}

// NewReportRepository creates a JSON-based report repository rooted at dataDir.
func NewReportRepository(dataDir string) (*ReportRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	reportsDir := filepath.Join(dataDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	return &ReportRepository{reportsDir: reportsDir}, nil
}

// Get loads the current report for a tenant/agent pair.
func (r *ReportRepository) Get(ctx context.Context, companyID, agentID string) (*report.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, err := r.reportPath(companyID, agentID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, sharedErrors.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var dto reportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return fromDTO(dto)
}

// Save upserts the report. The version check mirrors the Postgres adapter so
// the aggregator's retry loop behaves the same on both backends.
func (r *ReportRepository) Save(ctx context.Context, rep *report.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.reportPath(rep.CompanyID, rep.AgentID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create company directory: %w", err)
	}

	// Compare the stored version token with the one the caller read.
	if data, err := os.ReadFile(path); err == nil {
		var stored reportDTO
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal stored report: %w", err)
		}
		if stored.Version != rep.Version {
			return sharedErrors.ErrVersionConflict
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read stored report: %w", err)
	} else if rep.Version != 0 {
		return sharedErrors.ErrVersionConflict
	}

	rep.Version++
	data, err := json.MarshalIndent(toDTO(rep), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Delete removes the report for a tenant/agent pair. Missing reports are not
// an error so reset stays idempotent.
func (r *ReportRepository) Delete(ctx context.Context, companyID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.reportPath(companyID, agentID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func (r *ReportRepository) reportPath(companyID, agentID string) (string, error) {
	if !security.IsSafeSegment(companyID) || !security.IsSafeSegment(agentID) {
		return "", sharedErrors.ErrInvalidData
	}
	return security.ResolveWithin(r.reportsDir, companyID, agentID+".json")
}

func toDTO(rep *report.Report) reportDTO {
	dto := reportDTO{
		ReportID:      rep.ReportID,
		CompanyID:     rep.CompanyID,
		AgentID:       rep.AgentID,
		Score:         rep.Score,
		Grade:         string(rep.Grade),
		IssuesSummary: rep.IssuesSummary,
		LatestIssues:  rep.LatestIssues,
		ScanCount:     rep.ScanCount,
		ScoreHistory:  make([]historyEntryDTO, 0, len(rep.ScoreHistory)),
		CreatedAt:     rep.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:     rep.UpdatedAt.Format(time.RFC3339Nano),
		Version:       rep.Version,
	}
	if !rep.LastScanAt.IsZero() {
		dto.LastScanAt = rep.LastScanAt.Format(time.RFC3339Nano)
	}
	for _, entry := range rep.ScoreHistory {
		dto.ScoreHistory = append(dto.ScoreHistory, historyEntryDTO{Date: entry.Date, Score: entry.Score, Grade: string(entry.Grade)})
	}
	return dto
}

func fromDTO(dto reportDTO) (*report.Report, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, dto.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created at time: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, dto.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated at time: %w", err)
	}

	var lastScanAt time.Time
	if dto.LastScanAt != "" {
		lastScanAt, err = time.Parse(time.RFC3339Nano, dto.LastScanAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last scan time: %w", err)
		}
	}

	history := make([]report.HistoryEntry, 0, len(dto.ScoreHistory))
	for _, entry := range dto.ScoreHistory {
		history = append(history, report.HistoryEntry{Date: entry.Date, Score: entry.Score, Grade: issue.Grade(entry.Grade)})
	}

	return &report.Report{
		ReportID:      dto.ReportID,
		CompanyID:     dto.CompanyID,
		AgentID:       dto.AgentID,
		Score:         dto.Score,
		Grade:         issue.Grade(dto.Grade),
		IssuesSummary: dto.IssuesSummary,
		LatestIssues:  dto.LatestIssues,
		ScanCount:     dto.ScanCount,
		LastScanAt:    lastScanAt,
		ScoreHistory:  history,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		Version:       dto.Version,
	}, nil
}
