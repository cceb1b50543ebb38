// Package persistence provides the case store abstraction and its conditional update contract.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/casegate/pkg/models"
)

// Persistence is a case store backend.
type Persistence interface {
	CaseRepository() CaseRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CaseRepository stores cases. Apply is the only way to change a stored case:
// the backend checks the update's expectations and applies it atomically, or
// returns an error matching ErrConditionFailed and leaves the case untouched.
type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	List(ctx context.Context, opts ListCasesOptions) (*CaseListResult, error)
	Apply(ctx context.Context, id string, update *models.CaseUpdate) (*models.Case, error)
}

// ListCasesOptions filters and paginates List.
type ListCasesOptions struct {
	Owner  string
	Status models.CaseStatus
	// UpdatedBefore, when set, keeps only cases last updated before it.
	UpdatedBefore time.Time

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// CaseListResult is one page of cases.
type CaseListResult struct {
	Cases       []*models.Case `json:"cases"`
	TotalCount  int64          `json:"total_count"`
	HasNextPage bool           `json:"has_next_page"`
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var allowedSorts = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
}

// Normalize applies defaults and validates the sort parameters.
func (o *ListCasesOptions) Normalize() error {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}

	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	if !allowedSorts[o.SortBy] {
		return &CaseError{Op: "List", Err: ErrInvalidListOptions, Message: "invalid sort field " + o.SortBy}
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return &CaseError{Op: "List", Err: ErrInvalidListOptions, Message: "invalid sort order " + o.SortOrder}
	}

	return nil
}

// Matches reports whether c passes the filters of o.
func (o ListCasesOptions) Matches(c *models.Case) bool {
	if o.Owner != "" && c.Owner != o.Owner {
		return false
	}

	if o.Status != "" && c.Status != o.Status {
		return false
	}

	if !o.UpdatedBefore.IsZero() && !c.UpdatedAt.Before(o.UpdatedBefore) {
		return false
	}

	return true
}
