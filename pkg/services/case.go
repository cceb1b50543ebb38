package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukex/casegate/pkg/eventbus"
	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/lifecycle"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

// ErrCaseNotFound is returned when a case is not found.
var ErrCaseNotFound = persistence.ErrCaseNotFound

type Case struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	now         func() time.Time
}

// NewCase creates a new case service. publisher may be nil.
func NewCase(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Case {
	return &Case{
		persistence: persistence,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Case) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateCaseRequest holds the fields a new case is opened with.
type CreateCaseRequest struct {
	Owner       string `validate:"required"`
	Title       string `validate:"required,min=3"`
	Description string
}

// Create opens a new case in intake and publishes case.created.
func (s *Case) Create(ctx context.Context, req CreateCaseRequest) (*models.Case, error) {
	req.Owner = strings.TrimSpace(req.Owner)
	req.Title = strings.TrimSpace(req.Title)

	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("create", "invalid_case", err.Error(), ErrInvalidRequest)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate case id: %w", err)
	}

	c := models.NewCase(id.String(), req.Owner, req.Title, strings.TrimSpace(req.Description), s.now().UTC())

	if err := s.persistence.CaseRepository().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	if s.publisher != nil {
		event := events.CaseCreated{
			BaseEvent: events.NewBaseEvent(events.CaseCreatedEvent, c.ID, c.Owner),
			Owner:     c.Owner,
			Title:     c.Title,
		}

		if err := s.publisher.Publish(ctx, c.ID, event); err != nil {
			return c, fmt.Errorf("case created but event not published: %w", err)
		}
	}

	return c, nil
}

// FetchByID returns the case with id.
func (s *Case) FetchByID(ctx context.Context, id string) (*models.Case, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyCaseID
	}

	return s.persistence.CaseRepository().GetByID(ctx, id)
}

// ListCasesRequest contains options for listing cases.
type ListCasesRequest struct {
	// Pagination
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	Owner  string
	Status models.CaseStatus

	// Sorting
	SortBy    string `validate:"omitempty,oneof=created_at updated_at title"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
}

// List retrieves cases with filtering, sorting, and pagination.
func (s *Case) List(ctx context.Context, req ListCasesRequest) (*persistence.CaseListResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("list", "invalid_list_request", err.Error(), ErrInvalidRequest)
	}

	if req.Status != "" && !lifecycle.IsKnown(req.Status) {
		return nil, NewValidationError("list", "invalid_status", "unknown status "+string(req.Status), ErrInvalidStatus)
	}

	opts := persistence.ListCasesOptions{
		Owner:     req.Owner,
		Status:    req.Status,
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	result, err := s.persistence.CaseRepository().List(ctx, opts)
	if err != nil {
		if persistence.IsInvalidListOptions(err) {
			return nil, NewValidationError("list", "invalid_sort", err.Error(), ErrInvalidSortField)
		}

		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	return result, nil
}
