// Package web provides HTTP handlers and REST API endpoints for business cases.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/orchestrator"
	"github.com/dukex/casegate/pkg/registry"
	"github.com/dukex/casegate/pkg/services"
)

type APIHandlers struct {
	caseService  *services.Case
	orchestrator *orchestrator.Orchestrator
	validator    *validator.Validate
	registry     *registry.Registry
}

func NewAPIHandlers(
	caseService *services.Case,
	orchestrator *orchestrator.Orchestrator,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		caseService:  caseService,
		orchestrator: orchestrator,
		validator:    validator,
		registry:     registry,
	}
}

// Routes mounts the case endpoints on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	cases := router.Group("/cases")
	cases.Get("/", h.GetCases)
	cases.Post("/", h.CreateCase)
	cases.Get("/:id", h.GetCase)
	cases.Post("/:id/start", h.StartCase)
	cases.Post("/:id/join", h.TriggerJoin)
	cases.Post("/:id/abandon", h.AbandonCase)

	stages := cases.Group("/:id/stages/:stage")
	stages.Post("/request-approval", h.stageOperation(h.orchestrator.RequestApproval))
	stages.Post("/approve", h.stageOperation(h.orchestrator.Approve))
	stages.Post("/reject", h.stageOperation(h.orchestrator.Reject))
	stages.Post("/regenerate", h.stageOperation(h.orchestrator.Regenerate))
	stages.Post("/revise", h.ReviseDraft)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetCases(c fiber.Ctx) error {
	req, err := parseListCasesRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.caseService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"cases":         result.Cases,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListCasesRequest parses query parameters for listing cases.
func parseListCasesRequest(c fiber.Ctx) (*services.ListCasesRequest, error) {
	req := &services.ListCasesRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.Owner = c.Query("owner")
	req.Status = models.CaseStatus(c.Query("status"))
	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) CreateCase(c fiber.Ctx) error {
	var req CreateCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.caseService.Create(c.Context(), services.CreateCaseRequest{
		Owner:       req.Owner,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil && created == nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetCase(c fiber.Ctx) error {
	found, err := h.caseService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) StartCase(c fiber.Ctx) error {
	req, err := h.transitionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return respond(c)(h.orchestrator.Start(c.Context(), req))
}

func (h *APIHandlers) TriggerJoin(c fiber.Ctx) error {
	req, err := h.transitionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return respond(c)(h.orchestrator.CheckAndTriggerJoin(c.Context(), req))
}

func (h *APIHandlers) AbandonCase(c fiber.Ctx) error {
	req, err := h.transitionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return respond(c)(h.orchestrator.Abandon(c.Context(), req))
}

type operation func(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)

func (h *APIHandlers) stageOperation(op operation) fiber.Handler {
	return func(c fiber.Ctx) error {
		req, err := h.transitionRequest(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		req.Stage = models.Stage(c.Params("stage"))

		return respond(c)(op(c.Context(), req))
	}
}

func (h *APIHandlers) ReviseDraft(c fiber.Ctx) error {
	var body ReviseDraftRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	return respond(c)(h.orchestrator.ReviseDraft(c.Context(), orchestrator.Request{
		CaseID:         c.Params("id"),
		Stage:          models.Stage(c.Params("stage")),
		Actor:          body.Actor,
		ExpectedStatus: models.CaseStatus(body.ExpectedStatus),
		Content:        body.Content,
		Data:           body.Data,
	}))
}

// transitionRequest builds an orchestrator request from the path and the
// optional JSON body.
func (h *APIHandlers) transitionRequest(c fiber.Ctx) (orchestrator.Request, error) {
	var body TransitionRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return orchestrator.Request{}, err
		}

		if err := h.validator.Struct(body); err != nil {
			return orchestrator.Request{}, err
		}
	}

	return orchestrator.Request{
		CaseID:         c.Params("id"),
		Actor:          body.Actor,
		ExpectedStatus: models.CaseStatus(body.ExpectedStatus),
		Reason:         body.Reason,
	}, nil
}

func respond(c fiber.Ctx) func(*orchestrator.Result, error) error {
	return func(result *orchestrator.Result, err error) error {
		if err != nil {
			return handleOperationError(c, err, result)
		}

		return c.JSON(result)
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.caseService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Casegate API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Casegate API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
