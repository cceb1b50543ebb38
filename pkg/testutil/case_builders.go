// Package testutil provides test data builders and shared store tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/casegate/pkg/models"
)

// CreateTestCase creates a case in intake with default values that can be overridden.
func CreateTestCase(overrides ...func(*models.Case)) *models.Case {
	c := models.NewCase(
		uuid.Must(uuid.NewV7()).String(),
		"alice",
		"New billing system",
		"Replace the legacy invoicing tool",
		time.Now().UTC().Truncate(time.Millisecond),
	)

	for _, override := range overrides {
		override(c)
	}

	return c
}

// WithID sets the case id.
func WithID(id string) func(*models.Case) {
	return func(c *models.Case) {
		c.ID = id
	}
}

// WithOwner sets the case owner.
func WithOwner(owner string) func(*models.Case) {
	return func(c *models.Case) {
		c.Owner = owner
	}
}

// WithStatus sets the headline status.
func WithStatus(status models.CaseStatus) func(*models.Case) {
	return func(c *models.Case) {
		c.Status = status
	}
}

// WithLane sets the status of one stage lane.
func WithLane(stage models.Stage, status models.CaseStatus) func(*models.Case) {
	return func(c *models.Case) {
		c.Stages[stage] = status
	}
}

// WithArtifact appends a version to the artifact of stage.
func WithArtifact(stage models.Stage, content string, data map[string]any, review models.ReviewState) func(*models.Case) {
	return func(c *models.Case) {
		artifact := c.Artifacts[stage]
		if artifact == nil {
			artifact = &models.Artifact{Stage: stage}
			c.Artifacts[stage] = artifact
		}

		artifact.Versions = append(artifact.Versions, models.ArtifactVersion{
			Version:   len(artifact.Versions) + 1,
			Content:   content,
			Data:      data,
			Metadata:  models.GenerationMetadata{Generator: "test"},
			Review:    review,
			CreatedAt: c.CreatedAt,
		})
	}
}

// WithEvent appends a history entry.
func WithEvent(eventType models.EventType, stage models.Stage) func(*models.Case) {
	return func(c *models.Case) {
		c.History = append(c.History, models.HistoryEntry{
			Timestamp: c.CreatedAt,
			Actor:     c.Owner,
			EventType: eventType,
			Stage:     stage,
		})
	}
}

// WithUpdatedAt sets the last update time.
func WithUpdatedAt(t time.Time) func(*models.Case) {
	return func(c *models.Case) {
		c.UpdatedAt = t
	}
}

// ApprovedThrough returns the overrides that put a case at design_approved
// with approved requirements and design artifacts.
func ApprovedThrough() []func(*models.Case) {
	return []func(*models.Case){
		WithStatus(models.StatusDesignApproved),
		WithLane(models.StageRequirements, models.StatusRequirementsApproved),
		WithLane(models.StageDesign, models.StatusDesignApproved),
		WithArtifact(models.StageRequirements, "requirements", nil, models.ReviewApproved),
		WithArtifact(models.StageDesign, "design", nil, models.ReviewApproved),
		WithEvent(models.EventStageApproved, models.StageRequirements),
		WithEvent(models.EventStageApproved, models.StageDesign),
	}
}
