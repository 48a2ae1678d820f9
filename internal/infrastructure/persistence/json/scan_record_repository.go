package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wardenhq/sitewarden/internal/domain/scan"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
	"github.com/wardenhq/sitewarden/internal/shared/security"
)

// ScanRecordRepository implements scan.Repository with one JSON file per
// record under <dataDir>/scans/<companyID>/. Passive records are named by
// session so the filesystem itself enforces the per-session uniqueness
// invariant: O_CREATE|O_EXCL is the atomic insert-if-absent.
type ScanRecordRepository struct {
	scansDir string
	mu       sync.RWMutex
}

// NewScanRecordRepository creates a JSON-based scan record store rooted at dataDir.
func NewScanRecordRepository(dataDir string) (*ScanRecordRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	scansDir := filepath.Join(dataDir, "scans")
	if err := os.MkdirAll(scansDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scans directory: %w", err)
	}

	return &ScanRecordRepository{scansDir: scansDir}, nil
}

// Insert writes a new immutable record. A passive record whose session file
// already exists returns ErrDuplicateSession without touching the original.
func (r *ScanRecordRepository) Insert(ctx context.Context, rec *scan.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.recordPath(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create company directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return sharedErrors.ErrDuplicateSession
	}
	if err != nil {
		return fmt.Errorf("failed to create scan record: %w", err)
	}
	defer f.Close()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to save scan record: %w", err)
	}
	return nil
}

// FindBySession loads the passive record for a (companyID, sessionID) pair.
func (r *ScanRecordRepository) FindBySession(ctx context.Context, companyID, sessionID string) (*scan.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !security.IsSafeSegment(companyID) || !security.IsSafeSegment(sessionID) {
		return nil, sharedErrors.ErrInvalidData
	}
	path, err := security.ResolveWithin(r.scansDir, companyID, sessionFileName(sessionID))
	if err != nil {
		return nil, err
	}

	rec, err := loadRecord(path)
	if os.IsNotExist(err) {
		return nil, sharedErrors.ErrScanRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan record: %w", err)
	}
	return rec, nil
}

// ListRecent returns up to limit records for a tenant/agent pair, newest first.
func (r *ScanRecordRepository) ListRecent(ctx context.Context, companyID, agentID string, limit int) ([]*scan.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.loadCompany(companyID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*scan.Record, 0, len(records))
	for _, rec := range records {
		if rec.AgentID == agentID {
			filtered = append(filtered, rec)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// DeleteByAgent removes every record for a tenant/agent pair.
func (r *ScanRecordRepository) DeleteByAgent(ctx context.Context, companyID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !security.IsSafeSegment(companyID) {
		return sharedErrors.ErrInvalidData
	}
	companyDir, err := security.ResolveWithin(r.scansDir, companyID)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(companyDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read company directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(companyDir, entry.Name())
		rec, err := loadRecord(path)
		if err != nil {
			continue
		}
		if rec.AgentID != agentID {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete scan record: %w", err)
		}
	}
	return nil
}

// Helper methods

func (r *ScanRecordRepository) loadCompany(companyID string) ([]*scan.Record, error) {
	if !security.IsSafeSegment(companyID) {
		return nil, sharedErrors.ErrInvalidData
	}
	companyDir, err := security.ResolveWithin(r.scansDir, companyID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(companyDir)
	if os.IsNotExist(err) {
		return []*scan.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read company directory: %w", err)
	}

	records := make([]*scan.Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := loadRecord(filepath.Join(companyDir, entry.Name()))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *ScanRecordRepository) recordPath(rec *scan.Record) (string, error) {
	if !security.IsSafeSegment(rec.CompanyID) {
		return "", sharedErrors.ErrInvalidData
	}
	name := rec.ScanID + ".json"
	if rec.SessionID != "" {
		if !security.IsSafeSegment(rec.SessionID) {
			return "", sharedErrors.ErrInvalidData
		}
		name = sessionFileName(rec.SessionID)
	}
	return security.ResolveWithin(r.scansDir, rec.CompanyID, name)
}

func sessionFileName(sessionID string) string {
	return "sess_" + sessionID + ".json"
}

func loadRecord(path string) (*scan.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rec scan.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
