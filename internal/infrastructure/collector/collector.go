// Package collector provides the detection side of the active gateway:
// implementations visit a page and return the raw weaknesses they observed,
// leaving normalization and scoring to the aggregation engine.
package collector

import (
	"context"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
)

// Evidence is everything a collector observed on one page visit.
type Evidence struct {
	Issues []issue.RawIssue
	Meta   scan.Meta
}

// Collector visits a page and reports raw detections. Implementations must
// honor ctx cancellation and return an AutomationError when the visit itself
// fails, so callers can distinguish "page is fine" from "we could not look".
type Collector interface {
	Collect(ctx context.Context, pageURL string) (*Evidence, error)
	Name() string
}
