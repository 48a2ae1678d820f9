package scan

import "context"

// Repository persists immutable scan records.
//
// Insert must be atomic insert-if-absent on (companyID, sessionID) for
// records with a non-empty session: a concurrent duplicate returns
// errors.ErrDuplicateSession instead of writing a second record. Records
// without a session (active scans) are always inserted.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	FindBySession(ctx context.Context, companyID, sessionID string) (*Record, error)
	ListRecent(ctx context.Context, companyID, agentID string, limit int) ([]*Record, error)
	DeleteByAgent(ctx context.Context, companyID, agentID string) error
}
