// Package scanner implements the active gateway: it resolves a tenant's site
// URL, drives a collector against it, and feeds the findings through the same
// aggregation path passive submissions use.
package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wardenhq/sitewarden/internal/application/posture"
	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/tenant"
	"github.com/wardenhq/sitewarden/internal/infrastructure/collector"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

const (
	// collectAttempts bounds retries when the collector itself fails. Page
	// findings are never retried, only the visit.
	collectAttempts = 2

	defaultScanTimeout = 90 * time.Second
)

// Service orchestrates one active scan end to end.
type Service struct {
	agents     tenant.Directory
	aggregator *posture.Aggregator
	collector  collector.Collector
	timeout    time.Duration
	logger     *zap.Logger
}

// NewService wires the active gateway. logger may be nil.
func NewService(agents tenant.Directory, aggregator *posture.Aggregator, c collector.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		agents:     agents,
		aggregator: aggregator,
		collector:  c,
		timeout:    defaultScanTimeout,
		logger:     logger,
	}
}

// WithTimeout bounds each collection attempt.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Outcome is the result of one completed active scan.
type Outcome struct {
	URL           string        `json:"url"`
	ScanID        string        `json:"scanId"`
	Score         int           `json:"score"`
	Grade         issue.Grade   `json:"grade"`
	IssuesSummary issue.Summary `json:"issuesSummary"`
	Issues        []issue.Issue `json:"issues"`
	ScannedAt     time.Time     `json:"scannedAt"`
}

// Scan visits the agent's site and ingests what the collector found. A
// collector failure after all attempts leaves no scan record and no report
// change; the ingestion is all-or-nothing.
func (s *Service) Scan(ctx context.Context, companyID, agentID string) (*Outcome, error) {
	agent, err := s.agents.ResolveAgent(ctx, companyID, agentID)
	if err != nil {
		return nil, err
	}

	evidence, err := s.collect(ctx, agent.SiteURL)
	if err != nil {
		return nil, err
	}

	res, normalized, err := s.aggregator.IngestActive(ctx, companyID, agentID, agent.SiteURL, evidence.Issues, evidence.Meta)
	if err != nil {
		return nil, err
	}

	s.logger.Info("active scan completed",
		zap.String("company_id", companyID),
		zap.String("agent_id", agentID),
		zap.String("url", agent.SiteURL),
		zap.Int("score", res.Score),
		zap.String("grade", string(res.Grade)),
	)

	return &Outcome{
		URL:           agent.SiteURL,
		ScanID:        res.ScanID,
		Score:         res.Score,
		Grade:         res.Grade,
		IssuesSummary: issue.Summarize(normalized),
		Issues:        normalized,
		ScannedAt:     res.IngestedAt,
	}, nil
}

func (s *Service) collect(ctx context.Context, siteURL string) (*collector.Evidence, error) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= collectAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		evidence, err := s.collector.Collect(attemptCtx, siteURL)
		cancel()
		if err == nil {
			return evidence, nil
		}
		if !sharedErrors.IsAutomation(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("collection attempt failed",
			zap.String("url", siteURL),
			zap.String("collector", s.collector.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("collection exhausted %d attempts: %w", collectAttempts, lastErr)
}
