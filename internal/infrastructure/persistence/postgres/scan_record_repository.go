package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/sitewarden/internal/domain/scan"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

// ScanRecordRepository implements scan.Repository on PostgreSQL. The partial
// unique index on (company_id, session_id) makes Insert the cross-process
// dedup point for passive submissions.
type ScanRecordRepository struct {
	db *DB
}

// NewScanRecordRepository returns a repository backed by db.
func NewScanRecordRepository(db *DB) *ScanRecordRepository {
	return &ScanRecordRepository{db: db}
}

// Insert implements scan.Repository.
func (r *ScanRecordRepository) Insert(ctx context.Context, rec *scan.Record) error {
	issuesJSON, err := json.Marshal(rec.Issues)
	if err != nil {
		return fmt.Errorf("%w: encode issues: %v", sharedErrors.ErrInvalidData, err)
	}
	metaJSON, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("%w: encode meta: %v", sharedErrors.ErrInvalidData, err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO scan_records (scan_id, company_id, agent_id, session_id,
			page_url, source, issues, meta, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (company_id, session_id) WHERE session_id <> '' DO NOTHING
	`, rec.ScanID, rec.CompanyID, rec.AgentID, rec.SessionID,
		rec.PageURL, rec.Source, issuesJSON, metaJSON, rec.UserAgent, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert scan record: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if tag.RowsAffected() == 0 {
		return sharedErrors.ErrDuplicateSession
	}
	return nil
}

// FindBySession implements scan.Repository.
func (r *ScanRecordRepository) FindBySession(ctx context.Context, companyID, sessionID string) (*scan.Record, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT scan_id, company_id, agent_id, session_id, page_url, source,
		       issues, meta, user_agent, created_at
		FROM scan_records
		WHERE company_id = $1 AND session_id = $2 AND session_id <> ''
	`, companyID, sessionID)

	rec, err := scanRecordRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sharedErrors.ErrScanRecordNotFound
	}
	return rec, err
}

// ListRecent implements scan.Repository.
func (r *ScanRecordRepository) ListRecent(ctx context.Context, companyID, agentID string, limit int) ([]*scan.Record, error) {
	query := `
		SELECT scan_id, company_id, agent_id, session_id, page_url, source,
		       issues, meta, user_agent, created_at
		FROM scan_records
		WHERE company_id = $1 AND agent_id = $2
		ORDER BY created_at DESC`
	args := []any{companyID, agentID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list scan records: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer rows.Close()

	var records []*scan.Record
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate scan records: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return records, nil
}

// DeleteByAgent implements scan.Repository.
func (r *ScanRecordRepository) DeleteByAgent(ctx context.Context, companyID, agentID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		DELETE FROM scan_records WHERE company_id = $1 AND agent_id = $2
	`, companyID, agentID)
	if err != nil {
		return fmt.Errorf("%w: delete scan records: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

func scanRecordRow(row pgx.Row) (*scan.Record, error) {
	var (
		rec        scan.Record
		issuesJSON []byte
		metaJSON   []byte
	)
	err := row.Scan(&rec.ScanID, &rec.CompanyID, &rec.AgentID, &rec.SessionID,
		&rec.PageURL, &rec.Source, &issuesJSON, &metaJSON, &rec.UserAgent, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan record row: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := json.Unmarshal(issuesJSON, &rec.Issues); err != nil {
		return nil, fmt.Errorf("%w: decode issues: %v", sharedErrors.ErrInvalidData, err)
	}
	if err := json.Unmarshal(metaJSON, &rec.Meta); err != nil {
		return nil, fmt.Errorf("%w: decode meta: %v", sharedErrors.ErrInvalidData, err)
	}
	return &rec, nil
}
