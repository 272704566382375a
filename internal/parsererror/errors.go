// Package parsererror defines the error taxonomy of the import pipeline.
package parsererror

import (
	"errors"
	"fmt"
)

// InvalidRowError reports a raw statement row that cannot be transformed.
// It is never retried.
type InvalidRowError struct {
	Format string
	Field  string
	Value  string
	Err    error
}

func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("%s: invalid %s='%s': %v",
		e.Format, e.Field, e.Value, e.Err)
}

func (e *InvalidRowError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed session request. It is returned
// synchronously, before any session exists.
type ValidationError struct {
	Index  int // -1 when the problem concerns the whole request
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for item %d field %s: %s", e.Index, e.Field, e.Reason)
}

// NewRequestError builds a ValidationError about the request as a whole.
func NewRequestError(reason string) *ValidationError {
	return &ValidationError{Index: -1, Reason: reason}
}

// CategorizationError wraps a failure of the categorization oracle.
type CategorizationError struct {
	Description string
	Provider    string
	Err         error
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("categorization failed for %q using %s: %v",
		e.Description, e.Provider, e.Err)
}

func (e *CategorizationError) Unwrap() error {
	return e.Err
}

// CommitError wraps a failure of one commit step (persist or mirror).
// Subject names the transaction checksum or the entity being created.
type CommitError struct {
	Step    string
	Subject string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Step, e.Subject, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsInvalidRow reports whether err is, or wraps, an InvalidRowError.
func IsInvalidRow(err error) bool {
	var r *InvalidRowError
	return errors.As(err, &r)
}
