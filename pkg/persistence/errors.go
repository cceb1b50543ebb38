package persistence

import (
	"errors"
	"fmt"

	"github.com/dukex/casegate/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrCaseNotFound indicates a case was not found by the given identifier.
	ErrCaseNotFound = errors.New("case not found")

	// ErrCaseAlreadyExists indicates a case with the same identifier already exists.
	ErrCaseAlreadyExists = errors.New("case already exists")

	// ErrConditionFailed indicates a conditional update was rejected.
	ErrConditionFailed = models.ErrConditionFailed

	// ErrInvalidListOptions indicates unsupported sort or filter parameters.
	ErrInvalidListOptions = errors.New("invalid list options")
)

// CaseError wraps case store errors with additional context.
type CaseError struct {
	Op      string // Operation being performed (e.g., "GetByID", "Apply")
	CaseID  string
	Err     error
	Message string
}

func (e *CaseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for case %s: %s (%v)", e.Op, e.CaseID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for case %s: %v", e.Op, e.CaseID, e.Err)
}

func (e *CaseError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for case errors.
func (e *CaseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCaseError creates a new case error with context.
func NewCaseError(op, caseID string, err error) *CaseError {
	return &CaseError{Op: op, CaseID: caseID, Err: err}
}

// IsCaseNotFound checks if an error indicates a case was not found.
func IsCaseNotFound(err error) bool {
	return errors.Is(err, ErrCaseNotFound)
}

// IsConditionFailed checks if an error indicates a rejected conditional update.
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsInvalidListOptions checks if an error was caused by unsupported list parameters.
func IsInvalidListOptions(err error) bool {
	return errors.Is(err, ErrInvalidListOptions)
}
