package json

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

func newRecord(companyID, agentID, sessionID string, createdAt time.Time) *scan.Record {
	issues := []issue.Issue{{ID: "mixed_content", Type: "mixed_content", Severity: issue.SeverityHigh}}
	return scan.NewRecord(companyID, agentID, sessionID, "https://example.com", "test-agent", scan.SourcePassive, issues, scan.Meta{Protocol: "https:"}, createdAt)
}

func TestScanRecordInsertAndFindBySession(t *testing.T) {
	repo, err := NewScanRecordRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRecordRepository failed: %v", err)
	}
	ctx := context.Background()

	rec := newRecord("comp_1", "agent_1", "sess-abc", time.Now().UTC())
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.FindBySession(ctx, "comp_1", "sess-abc")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if got.ScanID != rec.ScanID || len(got.Issues) != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestScanRecordDuplicateSession(t *testing.T) {
	repo, err := NewScanRecordRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRecordRepository failed: %v", err)
	}
	ctx := context.Background()

	first := newRecord("comp_1", "agent_1", "sess-dup", time.Now().UTC())
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	second := newRecord("comp_1", "agent_1", "sess-dup", time.Now().UTC())
	if err := repo.Insert(ctx, second); !errors.Is(err, sharedErrors.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}

	// Original record untouched.
	got, err := repo.FindBySession(ctx, "comp_1", "sess-dup")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if got.ScanID != first.ScanID {
		t.Fatalf("expected original record to survive, got %s", got.ScanID)
	}
}

func TestScanRecordSessionMissing(t *testing.T) {
	repo, err := NewScanRecordRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRecordRepository failed: %v", err)
	}

	if _, err := repo.FindBySession(context.Background(), "comp_1", "nope"); !errors.Is(err, sharedErrors.ErrScanRecordNotFound) {
		t.Fatalf("expected ErrScanRecordNotFound, got %v", err)
	}
}

func TestScanRecordListRecentOrdersAndLimits(t *testing.T) {
	repo, err := NewScanRecordRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRecordRepository failed: %v", err)
	}
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		rec := newRecord("comp_1", "agent_1", fmt.Sprintf("sess-%d", i), base.Add(time.Duration(i)*time.Hour))
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
	// A different agent's record must not appear.
	other := newRecord("comp_1", "agent_2", "sess-other", base.Add(48*time.Hour))
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("insert other failed: %v", err)
	}

	records, err := repo.ListRecent(ctx, "comp_1", "agent_1", 5)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].CreatedAt.Before(records[i].CreatedAt) {
			t.Fatalf("records not newest-first at index %d", i)
		}
	}
	if records[0].SessionID != "sess-6" {
		t.Fatalf("expected newest session first, got %s", records[0].SessionID)
	}
}

func TestScanRecordDeleteByAgent(t *testing.T) {
	repo, err := NewScanRecordRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRecordRepository failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Insert(ctx, newRecord("comp_1", "agent_1", "sess-a", now)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.Insert(ctx, newRecord("comp_1", "agent_2", "sess-b", now)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := repo.DeleteByAgent(ctx, "comp_1", "agent_1"); err != nil {
		t.Fatalf("DeleteByAgent failed: %v", err)
	}

	if _, err := repo.FindBySession(ctx, "comp_1", "sess-a"); !errors.Is(err, sharedErrors.ErrScanRecordNotFound) {
		t.Fatalf("expected agent_1 records purged, got %v", err)
	}
	if _, err := repo.FindBySession(ctx, "comp_1", "sess-b"); err != nil {
		t.Fatalf("expected agent_2 records untouched, got %v", err)
	}
}

func TestScanRecordActiveScansAlwaysInsert(t *testing.T) {
	repo, err := NewScanRecordRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRecordRepository failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	// Session uniqueness only applies to passive submissions.
	for i := 0; i < 3; i++ {
		rec := scan.NewRecord("comp_1", "agent_1", "", "https://example.com", "", scan.SourceActive, nil, scan.Meta{}, now)
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("active insert %d failed: %v", i, err)
		}
	}

	records, err := repo.ListRecent(ctx, "comp_1", "agent_1", 0)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 active records, got %d", len(records))
	}
}
