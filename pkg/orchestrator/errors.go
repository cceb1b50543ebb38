package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/casegate/pkg/financial"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

var (
	// ErrStateMismatch means the addressed lane is not in the status the operation requires.
	// Callers recover by re-fetching the case.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrMissingPrerequisiteArtifact means an upstream artifact needed by the stage is absent.
	ErrMissingPrerequisiteArtifact = errors.New("missing prerequisite artifact")
	// ErrGenerationFailure means a Stage Agent or the financial join failed or timed out.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrPersistenceFailure means the store could not apply an update; nothing was committed.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrUnknownStage is returned for a stage outside the pipeline.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrValidation means the request or the financial inputs are malformed; the failing step wrote nothing.
	ErrValidation = errors.New("validation failed")

	ErrCaseNotFound = persistence.ErrCaseNotFound
)

// OperationError is returned by every orchestrator operation.
type OperationError struct {
	Op      string
	CaseID  string
	Stage   models.Stage
	From    models.CaseStatus
	To      models.CaseStatus
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s case %s", e.Op, e.CaseID)

	if e.Stage != "" {
		fmt.Fprintf(&b, " stage %s", e.Stage)
	}

	if e.From != "" || e.To != "" {
		fmt.Fprintf(&b, " (%s -> %s)", displayStatus(e.From), displayStatus(e.To))
	}

	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func displayStatus(status models.CaseStatus) string {
	if status == "" {
		return "none"
	}

	return string(status)
}

// IsClientError reports whether err is caused by the request rather than by a collaborator.
func IsClientError(err error) bool {
	return errors.Is(err, ErrStateMismatch) ||
		errors.Is(err, ErrMissingPrerequisiteArtifact) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, financial.ErrValidation) ||
		errors.Is(err, ErrUnknownStage) ||
		errors.Is(err, ErrCaseNotFound)
}

// classify maps a store error onto the taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, persistence.ErrCaseNotFound):
		return ErrCaseNotFound
	case errors.Is(err, persistence.ErrConditionFailed):
		return ErrStateMismatch
	default:
		return ErrPersistenceFailure
	}
}

// wrap joins a taxonomy sentinel with its cause so both match errors.Is.
func wrap(kind, cause error) error {
	switch {
	case cause == nil:
		return kind
	case errors.Is(cause, kind):
		return cause
	default:
		return fmt.Errorf("%w: %w", kind, cause)
	}
}
