package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wardenhq/sitewarden/internal/application/posture"
	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
	"github.com/wardenhq/sitewarden/internal/domain/tenant"
	"github.com/wardenhq/sitewarden/internal/infrastructure/collector"
	jsonstore "github.com/wardenhq/sitewarden/internal/infrastructure/persistence/json"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

type stubDirectory struct{}

func (stubDirectory) ResolveAgent(_ context.Context, companyID, agentID string) (*tenant.Agent, error) {
	if companyID == "comp_1" && agentID == "agent_1" {
		return &tenant.Agent{CompanyID: companyID, AgentID: agentID, SiteURL: "https://example.com"}, nil
	}
	return nil, sharedErrors.ErrAgentNotFound
}

type stubCollector struct {
	evidence *collector.Evidence
	failures int
	calls    int
}

func (c *stubCollector) Name() string { return "stub" }

func (c *stubCollector) Collect(_ context.Context, pageURL string) (*collector.Evidence, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, &sharedErrors.AutomationError{URL: pageURL, Err: errors.New("navigation timed out")}
	}
	return c.evidence, nil
}

func newTestService(t *testing.T, c collector.Collector) (*Service, *posture.Aggregator) {
	t.Helper()
	dir := t.TempDir()

	reports, err := jsonstore.NewReportRepository(dir)
	if err != nil {
		t.Fatalf("report repo: %v", err)
	}
	scans, err := jsonstore.NewScanRecordRepository(dir)
	if err != nil {
		t.Fatalf("scan repo: %v", err)
	}
	agg := posture.NewAggregator(reports, scans, stubDirectory{}, zaptest.NewLogger(t))
	return NewService(stubDirectory{}, agg, c, zaptest.NewLogger(t)), agg
}

func TestScanIngestsCollectorFindings(t *testing.T) {
	stub := &stubCollector{evidence: &collector.Evidence{
		Issues: []issue.RawIssue{{Type: "https_missing"}, {Type: "old_jquery"}},
		Meta:   scan.Meta{Protocol: "http:", ScriptCount: 1},
	}}
	svc, agg := newTestService(t, stub)

	out, err := svc.Scan(context.Background(), "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if out.Score != 67 || out.Grade != issue.GradeC {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.URL != "https://example.com" {
		t.Fatalf("expected the agent's site URL, got %s", out.URL)
	}
	if len(out.Issues) != 2 || out.Issues[0].Severity != issue.SeverityCritical {
		t.Fatalf("expected normalized issues, got %+v", out.Issues)
	}

	view, err := agg.View(context.Background(), "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.Report.ScanCount != 1 || view.Report.Score != 67 {
		t.Fatalf("scan must update the report: %+v", view.Report)
	}
	if len(view.RecentScans) != 1 {
		t.Fatalf("expected one scan record, got %d", len(view.RecentScans))
	}
}

func TestScanOutcomeTimestampMatchesRecord(t *testing.T) {
	stub := &stubCollector{evidence: &collector.Evidence{
		Issues: []issue.RawIssue{{Type: "https_missing"}},
	}}
	svc, agg := newTestService(t, stub)

	at := time.Date(2026, 5, 1, 23, 59, 59, 0, time.UTC)
	agg.WithClock(func() time.Time { return at })

	out, err := svc.Scan(context.Background(), "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !out.ScannedAt.Equal(at) {
		t.Fatalf("expected ScannedAt %v, got %v", at, out.ScannedAt)
	}

	view, err := agg.View(context.Background(), "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if !view.RecentScans[0].CreatedAt.Equal(out.ScannedAt) {
		t.Fatalf("record stamped %v but outcome reports %v", view.RecentScans[0].CreatedAt, out.ScannedAt)
	}
}

func TestScanRetriesAutomationFailuresOnce(t *testing.T) {
	stub := &stubCollector{
		failures: 1,
		evidence: &collector.Evidence{Issues: nil, Meta: scan.Meta{Protocol: "https:"}},
	}
	svc, _ := newTestService(t, stub)

	out, err := svc.Scan(context.Background(), "comp_1", "agent_1")
	if err != nil {
		t.Fatalf("Scan failed after retry: %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected 2 collection attempts, got %d", stub.calls)
	}
	if out.Score != 100 || out.Grade != issue.GradeA {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestScanFailureLeavesNoState(t *testing.T) {
	stub := &stubCollector{failures: collectAttempts + 1}
	svc, agg := newTestService(t, stub)

	_, err := svc.Scan(context.Background(), "comp_1", "agent_1")
	if !sharedErrors.IsAutomation(err) {
		t.Fatalf("expected AutomationError after exhausted retries, got %v", err)
	}
	if stub.calls != collectAttempts {
		t.Fatalf("expected %d attempts, got %d", collectAttempts, stub.calls)
	}

	// All-or-nothing: a failed visit must not create a report.
	if _, err := agg.View(context.Background(), "comp_1", "agent_1"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected no report after failed scan, got %v", err)
	}
}

func TestScanUnknownAgent(t *testing.T) {
	svc, _ := newTestService(t, &stubCollector{evidence: &collector.Evidence{}})

	if _, err := svc.Scan(context.Background(), "comp_1", "agent_missing"); !errors.Is(err, sharedErrors.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}
