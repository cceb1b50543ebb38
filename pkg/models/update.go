package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrConditionFailed indicates the stored case no longer matches the update's expectations.
var ErrConditionFailed = errors.New("update condition not met")

// ConditionError describes which expectation of a CaseUpdate did not hold.
type ConditionError struct {
	CaseID string
	Reason string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("case %s: %s: %s", e.CaseID, ErrConditionFailed, e.Reason)
}

func (e *ConditionError) Unwrap() error {
	return ErrConditionFailed
}

// CaseUpdate is a conditional partial update. Stores check every expectation
// against the currently persisted case and apply the mutations in the same
// atomic step, or reject the whole update with ErrConditionFailed.
type CaseUpdate struct {
	// ExpectStatuses, when not empty, requires the case status to be one of them.
	ExpectStatuses []CaseStatus
	// ExpectStages requires each listed lane to hold the given status; "" means not started.
	ExpectStages map[Stage]CaseStatus
	// RequireNoArtifact requires the listed stages to have no artifact yet.
	RequireNoArtifact []Stage
	// ExpectVersion, when positive, requires the stored version to match.
	ExpectVersion int64

	Status      CaseStatus
	SetStages   map[Stage]CaseStatus
	AddVersions map[Stage]ArtifactVersion
	// SetReview marks the current version of each listed stage.
	SetReview map[Stage]ReviewState
	History   []HistoryEntry
}

// Check verifies the update's expectations against c.
func (u *CaseUpdate) Check(c *Case) error {
	if u.ExpectVersion > 0 && c.Version != u.ExpectVersion {
		return &ConditionError{CaseID: c.ID, Reason: fmt.Sprintf("version is %d, expected %d", c.Version, u.ExpectVersion)}
	}

	if len(u.ExpectStatuses) > 0 && !slices.Contains(u.ExpectStatuses, c.Status) {
		return &ConditionError{CaseID: c.ID, Reason: fmt.Sprintf("status is %s, expected one of %v", c.Status, u.ExpectStatuses)}
	}

	for stage, expected := range u.ExpectStages {
		if actual := c.StageStatus(stage); actual != expected {
			return &ConditionError{CaseID: c.ID, Reason: fmt.Sprintf("stage %s is %q, expected %q", stage, actual, expected)}
		}
	}

	for _, stage := range u.RequireNoArtifact {
		if c.Artifact(stage).Current() != nil {
			return &ConditionError{CaseID: c.ID, Reason: fmt.Sprintf("artifact for stage %s already exists", stage)}
		}
	}

	return nil
}

// Apply mutates c in place. Callers run Check first.
func (u *CaseUpdate) Apply(c *Case, now time.Time) {
	if c.Stages == nil {
		c.Stages = make(map[Stage]CaseStatus)
	}

	if c.Artifacts == nil {
		c.Artifacts = make(map[Stage]*Artifact)
	}

	if u.Status != "" {
		c.Status = u.Status
	}

	for stage, status := range u.SetStages {
		c.Stages[stage] = status
	}

	for stage, version := range u.AddVersions {
		artifact := c.Artifacts[stage]
		if artifact == nil {
			artifact = &Artifact{Stage: stage}
			c.Artifacts[stage] = artifact
		}

		version.Version = len(artifact.Versions) + 1
		if version.CreatedAt.IsZero() {
			version.CreatedAt = now
		}

		if version.Review == "" {
			version.Review = ReviewPending
		}

		artifact.Versions = append(artifact.Versions, version)
	}

	for stage, review := range u.SetReview {
		if current := c.Artifact(stage).Current(); current != nil {
			current.Review = review
		}
	}

	for _, entry := range u.History {
		if entry.Timestamp.IsZero() {
			entry.Timestamp = now
		}

		c.History = append(c.History, entry)
	}

	c.Version++
	c.UpdatedAt = now
}

// CheckAndApply runs Check then Apply.
func (u *CaseUpdate) CheckAndApply(c *Case, now time.Time) error {
	if err := u.Check(c); err != nil {
		return err
	}

	u.Apply(c, now)

	return nil
}
