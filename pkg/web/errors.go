package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/casegate/pkg/financial"
	"github.com/dukex/casegate/pkg/orchestrator"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for case service errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case persistence.IsCaseNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("case_not_found").
			WithDetail("case not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		return internalError(c, err)
	}
}

// operationProblem is rendered when an approval was committed but a follow-up
// generation or the join failed; result holds the committed case.
type operationProblem struct {
	*problems.Problem

	Result *orchestrator.Result `json:"result,omitempty"`
}

// handleOperationError maps the orchestrator error taxonomy onto problem responses.
func handleOperationError(c fiber.Ctx, err error, result *orchestrator.Result) error {
	var (
		status  int
		errType string
	)

	switch {
	case errors.Is(err, orchestrator.ErrCaseNotFound):
		status, errType = fiber.StatusNotFound, "case_not_found"
	case errors.Is(err, orchestrator.ErrUnknownStage):
		status, errType = fiber.StatusNotFound, "stage_not_found"
	case errors.Is(err, orchestrator.ErrValidation), errors.Is(err, financial.ErrValidation):
		status, errType = fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, orchestrator.ErrStateMismatch):
		status, errType = fiber.StatusConflict, "state_mismatch"
	case errors.Is(err, orchestrator.ErrMissingPrerequisiteArtifact):
		status, errType = fiber.StatusConflict, "missing_prerequisite_artifact"
	case errors.Is(err, orchestrator.ErrGenerationFailure):
		status, errType = fiber.StatusBadGateway, "generation_failure"
	default:
		status, errType = fiber.StatusInternalServerError, "internal_error"
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(err.Error())

	return c.Status(status).JSON(operationProblem{Problem: problem, Result: result})
}
