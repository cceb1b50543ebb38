package persistence_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		notFound := persistence.NewCaseError("GetByID", "case-123", persistence.ErrCaseNotFound)
		condition := persistence.NewCaseError("Apply", "case-123", &models.ConditionError{CaseID: "case-123", Reason: "status moved"})

		assert.True(t, persistence.IsCaseNotFound(notFound))
		assert.False(t, persistence.IsConditionFailed(notFound))
		assert.True(t, persistence.IsConditionFailed(condition))
		assert.True(t, errors.Is(condition, models.ErrConditionFailed))
	})

	t.Run("case error contains context", func(t *testing.T) {
		err := &persistence.CaseError{Op: "Apply", CaseID: "case-123", Err: persistence.ErrCaseNotFound, Message: "loading"}

		assert.Contains(t, err.Error(), "Apply")
		assert.Contains(t, err.Error(), "case-123")
		assert.Contains(t, err.Error(), "loading")
		assert.Contains(t, err.Error(), "case not found")
	})
}
