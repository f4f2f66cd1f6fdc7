package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a reference to something that does not exist
// (or is not visible to the caller).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// DanglingReferenceError reports a record pointing at a deleted category.
type DanglingReferenceError struct {
	Resource   string
	ID         string
	CategoryID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s %s references missing category %s", e.Resource, e.ID, e.CategoryID)
}

// ConflictError reports a write that collides with existing data.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// AuthError reports missing, expired or invalid credentials.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}

var (
	// ErrJobFailure is the only cause a poller ever sees for a failed report.
	ErrJobFailure = errors.New("report generation failed")

	// ErrReportNotReady is returned when an artifact is requested before its job succeeded.
	ErrReportNotReady = errors.New("report is not ready")
)

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
