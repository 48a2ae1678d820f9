package issue

import (
	"testing"
	"time"
)

func TestNormalizeKnownTypeUsesCatalog(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// A compromised client trying to downgrade a critical finding.
	raw := RawIssue{
		Type:        "https_missing",
		Severity:    "info",
		Title:       "nothing to see here",
		Description: "benign",
		Details:     "observed on landing page",
	}

	got := Normalize(raw, now)

	if got.Severity != SeverityCritical {
		t.Errorf("expected catalog severity critical, got %s", got.Severity)
	}
	if got.Title == raw.Title || got.Description == raw.Description {
		t.Errorf("expected catalog text to replace detector text: %+v", got)
	}
	if got.Recommendation == "" {
		t.Error("expected catalog recommendation to be populated")
	}
	if got.Details != raw.Details {
		t.Errorf("expected detector details to survive, got %q", got.Details)
	}
	if got.ID != "https_missing" || got.Type != "https_missing" {
		t.Errorf("expected stable catalog id/type, got id=%q type=%q", got.ID, got.Type)
	}
	if !got.DetectedAt.Equal(now) {
		t.Errorf("expected detectedAt %v, got %v", now, got.DetectedAt)
	}
}

func TestNormalizeUnknownTypePassesThrough(t *testing.T) {
	now := time.Now().UTC()
	raw := RawIssue{
		Type:           "weird_widget_leak",
		Severity:       "HIGH",
		Title:          "Widget leaks state",
		Description:    "custom detector finding",
		Recommendation: "patch the widget",
		Details:        "3 occurrences",
	}

	got := Normalize(raw, now)

	if got.Type != raw.Type || got.ID != raw.Type {
		t.Errorf("expected unknown type to pass through, got %+v", got)
	}
	if got.Severity != SeverityHigh {
		t.Errorf("expected parsed fallback severity high, got %s", got.Severity)
	}
	if got.Title != raw.Title || got.Recommendation != raw.Recommendation {
		t.Errorf("expected detector text kept for unknown type: %+v", got)
	}
}

func TestNormalizeUnknownSeverityFallsBackToInfo(t *testing.T) {
	got := Normalize(RawIssue{Type: "mystery", Severity: "catastrophic"}, time.Now().UTC())
	if got.Severity != SeverityInfo {
		t.Fatalf("expected unknown severity to fall back to info, got %s", got.Severity)
	}
}

func TestNormalizeGeneratesIDForTypelessIssue(t *testing.T) {
	got := Normalize(RawIssue{Details: "anonymous finding"}, time.Now().UTC())
	if got.ID == "" {
		t.Fatal("expected a generated id for an issue without a type")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"critical", SeverityCritical},
		{" HIGH ", SeverityHigh},
		{"Medium", SeverityMedium},
		{"low", SeverityLow},
		{"info", SeverityInfo},
		{"", SeverityInfo},
		{"bogus", SeverityInfo},
	}

	for _, tt := range tests {
		if got := ParseSeverity(tt.in); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// TestCatalogEntriesComplete guards the catalog against half-filled entries.
func TestCatalogEntriesComplete(t *testing.T) {
	for _, typeCode := range CatalogTypes() {
		entry, ok := Lookup(typeCode)
		if !ok {
			t.Fatalf("CatalogTypes returned %q but Lookup missed it", typeCode)
		}
		if entry.Type != typeCode {
			t.Errorf("entry %q has mismatched type %q", typeCode, entry.Type)
		}
		if entry.Title == "" || entry.Description == "" || entry.Recommendation == "" {
			t.Errorf("entry %q is missing guidance text", typeCode)
		}
		valid := false
		for _, sev := range Severities {
			if entry.Severity == sev {
				valid = true
			}
		}
		if !valid {
			t.Errorf("entry %q has invalid severity %q", typeCode, entry.Severity)
		}
	}
}
