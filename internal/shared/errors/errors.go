package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Tenant directory errors
	ErrCompanyNotFound = errors.New("company not found")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrUnauthorized    = errors.New("operation not authorized for this tenant")

	// Report errors
	ErrReportNotFound  = errors.New("report not found")
	ErrVersionConflict = errors.New("report was modified concurrently")

	// Scan record errors
	ErrScanRecordNotFound = errors.New("scan record not found")
	ErrDuplicateSession   = errors.New("scan record already exists for this session")

	// Repository errors
	ErrRepositoryOperation = errors.New("repository operation failed")
	ErrInvalidData         = errors.New("invalid data")
)

// ValidationError reports a missing or malformed required field. It is never
// retried and maps to a 4xx response at the API boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid or missing field %q", e.Field)
	}
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AutomationError wraps a headless-browser or probe failure (navigation,
// timeout, script execution). Callers may retry a bounded number of times.
type AutomationError struct {
	URL string
	Err error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("automation failed for %s: %v", e.URL, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// IsAutomation reports whether err is an AutomationError.
func IsAutomation(err error) bool {
	var ae *AutomationError
	return errors.As(err, &ae)
}
