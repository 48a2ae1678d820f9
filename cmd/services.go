package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/wardenhq/sitewarden/internal/application/posture"
	"github.com/wardenhq/sitewarden/internal/application/scanner"
	"github.com/wardenhq/sitewarden/internal/domain/report"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
	"github.com/wardenhq/sitewarden/internal/domain/tenant"
	"github.com/wardenhq/sitewarden/internal/infrastructure/collector"
	"github.com/wardenhq/sitewarden/internal/infrastructure/directory"
	jsonstore "github.com/wardenhq/sitewarden/internal/infrastructure/persistence/json"
	"github.com/wardenhq/sitewarden/internal/infrastructure/persistence/postgres"
)

// services bundles the wired application layer for one command invocation.
type services struct {
	aggregator *posture.Aggregator
	scanner    *scanner.Service
	directory  tenant.Directory
	// ready reports backend health, nil for the file backend.
	ready func(ctx context.Context) error
	close func()
}

// buildServices wires repositories, the tenant directory, the aggregator, and
// the active-scan service for the configured backend (json or postgres).
func buildServices(ctx context.Context, collectorName string) (*services, error) {
	agentsFile := viper.GetString("agents_file")
	if agentsFile == "" {
		agentsFile = filepath.Join(dataDir, "agents.json")
	}
	dir, err := directory.LoadStatic(agentsFile)
	if err != nil {
		return nil, fmt.Errorf("load tenant directory: %w", err)
	}

	var (
		reports report.Repository
		scans   scan.Repository
		ready   func(ctx context.Context) error
		closeFn = func() {}
	)

	backend := viper.GetString("backend")
	if backend == "" {
		backend = "json"
	}
	switch backend {
	case "json":
		jsonReports, err := jsonstore.NewReportRepository(dataDir)
		if err != nil {
			return nil, fmt.Errorf("init report store: %w", err)
		}
		jsonScans, err := jsonstore.NewScanRecordRepository(dataDir)
		if err != nil {
			return nil, fmt.Errorf("init scan record store: %w", err)
		}
		reports, scans = jsonReports, jsonScans
	case "postgres":
		url := viper.GetString("postgres_url")
		if url == "" {
			return nil, fmt.Errorf("postgres backend requires postgres_url (SITEWARDEN_POSTGRES_URL)")
		}
		if err := postgres.Migrate(url); err != nil {
			return nil, err
		}
		db, err := postgres.Connect(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		reports = postgres.NewReportRepository(db)
		scans = postgres.NewScanRecordRepository(db)
		ready = db.Pool.Ping
		closeFn = db.Close
	default:
		return nil, fmt.Errorf("unknown backend %q (want json or postgres)", backend)
	}

	aggregator := posture.NewAggregator(reports, scans, dir, logger)

	var c collector.Collector
	switch collectorName {
	case "", "probe":
		c = collector.NewHTTPProbe()
	case "browser":
		c = collector.NewBrowser()
	default:
		closeFn()
		return nil, fmt.Errorf("unknown collector %q (want probe or browser)", collectorName)
	}

	return &services{
		aggregator: aggregator,
		scanner:    scanner.NewService(dir, aggregator, c, logger),
		directory:  dir,
		ready:      ready,
		close:      closeFn,
	}, nil
}
