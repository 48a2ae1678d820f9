package json

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/report"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

func TestReportRepositoryRoundTrip(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository failed: %v", err)
	}
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rep := report.New("comp_1", "agent_1", now)
	issues := []issue.Issue{{ID: "https_missing", Type: "https_missing", Severity: issue.SeverityCritical, DetectedAt: now}}
	rep.RecordIngestion(now, issues, 75, issue.GradeB, issue.Summarize(issues))

	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ReportID != rep.ReportID || got.Score != 75 || got.Grade != issue.GradeB {
		t.Fatalf("unexpected report: %+v", got)
	}
	if got.ScanCount != 1 || len(got.ScoreHistory) != 1 || got.ScoreHistory[0].Date != "2026-05-01" {
		t.Fatalf("history not persisted: %+v", got.ScoreHistory)
	}
	if len(got.LatestIssues) != 1 || got.LatestIssues[0].Type != "https_missing" {
		t.Fatalf("latest issues not persisted: %+v", got.LatestIssues)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1 after first save, got %d", got.Version)
	}
}

func TestReportRepositoryGetMissing(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository failed: %v", err)
	}

	if _, err := repo.Get(context.Background(), "comp_1", "agent_1"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestReportRepositoryVersionConflict(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	rep := report.New("comp_1", "agent_1", now)
	rep.RecordIngestion(now, nil, 100, issue.GradeA, issue.Summary{})
	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}

	// A second writer that read the pre-save state must be rejected.
	stale := report.New("comp_1", "agent_1", now)
	stale.RecordIngestion(now, nil, 40, issue.GradeD, issue.Summary{})
	if err := repo.Save(ctx, stale); !errors.Is(err, sharedErrors.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// The writer that re-reads picks up the current version and succeeds.
	current, err := repo.Get(ctx, "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	current.RecordIngestion(now, nil, 40, issue.GradeD, issue.Summary{})
	if err := repo.Save(ctx, current); err != nil {
		t.Fatalf("retry save failed: %v", err)
	}
}

func TestReportRepositoryDelete(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	rep := report.New("comp_1", "agent_1", now)
	rep.RecordIngestion(now, nil, 100, issue.GradeA, issue.Summary{})
	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := repo.Delete(ctx, "comp_1", "agent_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "comp_1", "agent_1"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected report gone, got %v", err)
	}

	// Deleting again is a no-op.
	if err := repo.Delete(ctx, "comp_1", "agent_1"); err != nil {
		t.Fatalf("repeat delete should be idempotent: %v", err)
	}
}

func TestReportRepositoryRejectsUnsafeIDs(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository failed: %v", err)
	}

	if _, err := repo.Get(context.Background(), "../etc", "agent"); !errors.Is(err, sharedErrors.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for traversal attempt, got %v", err)
	}
}
