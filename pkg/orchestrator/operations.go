package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/lifecycle"
	"github.com/dukex/casegate/pkg/models"
)

// Start moves a case out of intake by generating the requirements draft.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Result, error) {
	req.Stage = models.StageRequirements

	return o.run(ctx, "start", req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		spec, err := o.stageSpec("start", req)
		if err != nil {
			return nil, err
		}

		if _, err := laneStatus("start", c, spec, req, spec.Drafting, models.StatusIntake); err != nil {
			return nil, err
		}

		updated, err := o.generate(ctx, "start", c, spec, req.Actor)
		if err != nil {
			return nil, err
		}

		return newResult(updated, "%s draft generated", spec.Stage), nil
	})
}

// Regenerate retries the generation of a stage whose gate is approved but whose
// draft is missing, or whose draft was rejected.
func (o *Orchestrator) Regenerate(ctx context.Context, req Request) (*Result, error) {
	return o.run(ctx, "regenerate", req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		spec, err := o.stageSpec("regenerate", req)
		if err != nil {
			return nil, err
		}

		if !spec.IsGenerated() {
			return nil, &OperationError{
				Op: "regenerate", CaseID: c.ID, Stage: spec.Stage,
				Message: "stage is produced by the financial join",
				Err:     ErrStateMismatch,
			}
		}

		allowed := []models.CaseStatus{spec.Rejected}
		if c.StageStatus(spec.Stage) == "" {
			allowed = append(allowed, spec.EntryStatus())
		}

		if _, err := laneStatus("regenerate", c, spec, req, spec.Drafting, allowed...); err != nil {
			return nil, err
		}

		updated, err := o.generate(ctx, "regenerate", c, spec, req.Actor)
		if err != nil {
			return nil, err
		}

		return newResult(updated, "%s draft regenerated", spec.Stage), nil
	})
}

// RequestApproval submits the current draft of a stage for review. A rejected
// draft is resubmitted as a new pending version; the rejected one stays in history.
func (o *Orchestrator) RequestApproval(ctx context.Context, req Request) (*Result, error) {
	const op = "request_approval"

	return o.run(ctx, op, req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		spec, err := o.stageSpec(op, req)
		if err != nil {
			return nil, err
		}

		from, err := laneStatus(op, c, spec, req, spec.PendingReview, spec.Drafting, spec.Rejected)
		if err != nil {
			return nil, err
		}

		current := c.Artifact(spec.Stage).Current()
		if current == nil {
			return nil, &OperationError{
				Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: spec.PendingReview,
				Message: "stage has no draft to review",
				Err:     ErrMissingPrerequisiteArtifact,
			}
		}

		if err := checkBranchData(op, c, spec, from, spec.PendingReview, current.Data); err != nil {
			return nil, err
		}

		update := &models.CaseUpdate{
			ExpectVersion: c.Version,
			ExpectStages:  map[models.Stage]models.CaseStatus{spec.Stage: from},
			Status:        spec.PendingReview,
			SetStages:     map[models.Stage]models.CaseStatus{spec.Stage: spec.PendingReview},
			History: []models.HistoryEntry{{
				Actor:      req.Actor,
				EventType:  models.EventStageSubmitted,
				Stage:      spec.Stage,
				FromStatus: from,
				ToStatus:   spec.PendingReview,
			}},
		}

		message := "%s submitted for review"

		if from == spec.Rejected {
			update.AddVersions = map[models.Stage]models.ArtifactVersion{spec.Stage: {
				Content:  current.Content,
				Data:     maps.Clone(current.Data),
				Metadata: current.Metadata,
			}}
			update.History[0].Detail = fmt.Sprintf("resubmission of version %d", current.Version)
			message = "%s resubmitted for review"
		}

		updated, err := o.commit(ctx, op, c, spec.Stage, from, spec.PendingReview, update)
		if err != nil {
			return nil, err
		}

		o.publish(ctx, c.ID, statusChanged(c.ID, req.Actor, spec.Stage, from, spec.PendingReview))

		return newResult(updated, message, spec.Stage), nil
	})
}

// Approve approves the pending draft of a stage, then synchronously generates
// every stage it gates, or runs the join check for the cost and value branches.
// When the approval is committed but a follow-up step fails, both the result
// and the error are returned.
func (o *Orchestrator) Approve(ctx context.Context, req Request) (*Result, error) {
	const op = "approve"

	return o.run(ctx, op, req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		spec, err := o.stageSpec(op, req)
		if err != nil {
			return nil, err
		}

		from, err := laneStatus(op, c, spec, req, spec.Approved, spec.PendingReview)
		if err != nil {
			return nil, err
		}

		current := c.Artifact(spec.Stage).Current()
		if current == nil {
			return nil, &OperationError{
				Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: spec.Approved,
				Message: "stage has no draft to approve",
				Err:     ErrMissingPrerequisiteArtifact,
			}
		}

		if err := checkBranchData(op, c, spec, from, spec.Approved, current.Data); err != nil {
			return nil, err
		}

		updated, err := o.commit(ctx, op, c, spec.Stage, from, spec.Approved, &models.CaseUpdate{
			ExpectVersion: c.Version,
			ExpectStages:  map[models.Stage]models.CaseStatus{spec.Stage: from},
			Status:        spec.Approved,
			SetStages:     map[models.Stage]models.CaseStatus{spec.Stage: spec.Approved},
			SetReview:     map[models.Stage]models.ReviewState{spec.Stage: models.ReviewApproved},
			History: []models.HistoryEntry{{
				Actor:      req.Actor,
				EventType:  models.EventStageApproved,
				Stage:      spec.Stage,
				FromStatus: from,
				ToStatus:   spec.Approved,
				Detail:     fmt.Sprintf("version %d", current.Version),
			}},
		})
		if err != nil {
			return nil, err
		}

		o.publish(ctx, c.ID,
			statusChanged(c.ID, req.Actor, spec.Stage, from, spec.Approved),
			events.StageApproved{
				BaseEvent: events.NewBaseEvent(events.StageApprovedEvent, c.ID, req.Actor),
				Stage:     spec.Stage,
				Version:   current.Version,
			},
		)

		if spec.JoinBranch {
			result, err := o.checkAndTriggerJoin(ctx, updated, req.Actor)
			if result == nil {
				result = newResult(updated, "join failed")
			}

			result.Message = fmt.Sprintf("%s approved; %s", spec.Stage, result.Message)

			return result, err
		}

		return o.cascade(ctx, op, updated, spec, from, req.Actor)
	})
}

func (o *Orchestrator) cascade(ctx context.Context, op string, c *models.Case, spec lifecycle.StageSpec,
	from models.CaseStatus, actor string,
) (*Result, error) {
	var (
		generated []string
		failures  []error
	)

	for _, next := range spec.Cascade {
		nextSpec, err := lifecycle.Spec(next)
		if err != nil {
			failures = append(failures, err)

			continue
		}

		c, err = o.generate(ctx, op, c, nextSpec, actor)
		if err != nil {
			failures = append(failures, err)

			continue
		}

		generated = append(generated, string(next))
	}

	message := fmt.Sprintf("%s approved", spec.Stage)
	if len(generated) > 0 {
		message += "; generated " + strings.Join(generated, ", ")
	}

	result := &Result{Case: c, NewStatus: c.Status, Message: message}

	if len(failures) > 0 {
		return result, &OperationError{
			Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: spec.Approved,
			Message: "stage approved but a downstream generation failed",
			Err:     errors.Join(failures...),
		}
	}

	return result, nil
}

// Reject marks the pending draft of a stage rejected.
func (o *Orchestrator) Reject(ctx context.Context, req Request) (*Result, error) {
	const op = "reject"

	return o.run(ctx, op, req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		spec, err := o.stageSpec(op, req)
		if err != nil {
			return nil, err
		}

		from, err := laneStatus(op, c, spec, req, spec.Rejected, spec.PendingReview)
		if err != nil {
			return nil, err
		}

		version := 0
		if current := c.Artifact(spec.Stage).Current(); current != nil {
			version = current.Version
		}

		updated, err := o.commit(ctx, op, c, spec.Stage, from, spec.Rejected, &models.CaseUpdate{
			ExpectVersion: c.Version,
			ExpectStages:  map[models.Stage]models.CaseStatus{spec.Stage: from},
			Status:        spec.Rejected,
			SetStages:     map[models.Stage]models.CaseStatus{spec.Stage: spec.Rejected},
			SetReview:     map[models.Stage]models.ReviewState{spec.Stage: models.ReviewRejected},
			History: []models.HistoryEntry{{
				Actor:      req.Actor,
				EventType:  models.EventStageRejected,
				Stage:      spec.Stage,
				FromStatus: from,
				ToStatus:   spec.Rejected,
				Detail:     strings.TrimSpace(req.Reason),
			}},
		})
		if err != nil {
			return nil, err
		}

		o.publish(ctx, c.ID,
			statusChanged(c.ID, req.Actor, spec.Stage, from, spec.Rejected),
			events.StageRejected{
				BaseEvent: events.NewBaseEvent(events.StageRejectedEvent, c.ID, req.Actor),
				Stage:     spec.Stage,
				Version:   version,
				Reason:    strings.TrimSpace(req.Reason),
			},
		)

		return newResult(updated, "%s rejected", spec.Stage), nil
	})
}

// ReviseDraft stores a human edit of a drafting or rejected stage as a new
// pending version and leaves the lane in drafting. Data left empty keeps the
// structured data of the current version.
func (o *Orchestrator) ReviseDraft(ctx context.Context, req Request) (*Result, error) {
	const op = "revise"

	return o.run(ctx, op, req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		spec, err := o.stageSpec(op, req)
		if err != nil {
			return nil, err
		}

		if !spec.IsGenerated() {
			return nil, &OperationError{
				Op: op, CaseID: c.ID, Stage: spec.Stage,
				Message: "stage is produced by the financial join",
				Err:     ErrStateMismatch,
			}
		}

		if strings.TrimSpace(req.Content) == "" {
			return nil, &OperationError{Op: op, CaseID: c.ID, Stage: spec.Stage, Message: "content is required", Err: ErrValidation}
		}

		from, err := laneStatus(op, c, spec, req, spec.Drafting, spec.Drafting, spec.Rejected)
		if err != nil {
			return nil, err
		}

		data := req.Data
		if data == nil {
			if current := c.Artifact(spec.Stage).Current(); current != nil {
				data = maps.Clone(current.Data)
			}
		}

		if err := checkBranchData(op, c, spec, from, spec.Drafting, data); err != nil {
			return nil, err
		}

		updated, err := o.commit(ctx, op, c, spec.Stage, from, spec.Drafting, &models.CaseUpdate{
			ExpectVersion: c.Version,
			ExpectStages:  map[models.Stage]models.CaseStatus{spec.Stage: from},
			Status:        spec.Drafting,
			SetStages:     map[models.Stage]models.CaseStatus{spec.Stage: spec.Drafting},
			AddVersions: map[models.Stage]models.ArtifactVersion{spec.Stage: {
				Content: req.Content,
				Data:    data,
				Metadata: models.GenerationMetadata{
					Generator: "manual",
					Extra:     map[string]any{"editor": req.Actor},
				},
			}},
			History: []models.HistoryEntry{{
				Actor:      req.Actor,
				EventType:  models.EventStageRevised,
				Stage:      spec.Stage,
				FromStatus: from,
				ToStatus:   spec.Drafting,
			}},
		})
		if err != nil {
			return nil, err
		}

		if from != spec.Drafting {
			o.publish(ctx, c.ID, statusChanged(c.ID, req.Actor, spec.Stage, from, spec.Drafting))
		}

		return newResult(updated, "%s draft revised", spec.Stage), nil
	})
}

// Abandon moves a non-terminal case to abandoned. A case with a join in flight
// cannot be abandoned until the join settles.
func (o *Orchestrator) Abandon(ctx context.Context, req Request) (*Result, error) {
	const op = "abandon"

	req.Stage = ""

	return o.run(ctx, op, req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		from := c.Status

		mismatch := func(message string) error {
			return &OperationError{Op: op, CaseID: c.ID, From: from, To: models.StatusAbandoned, Message: message, Err: ErrStateMismatch}
		}

		if req.ExpectedStatus != "" && req.ExpectedStatus != from {
			return nil, mismatch(fmt.Sprintf("expected %s but case is %s", req.ExpectedStatus, from))
		}

		if !lifecycle.CanTransition(from, models.StatusAbandoned) {
			return nil, mismatch(fmt.Sprintf("case is %s", from))
		}

		updated, err := o.commit(ctx, op, c, "", from, models.StatusAbandoned, &models.CaseUpdate{
			ExpectVersion:  c.Version,
			ExpectStatuses: []models.CaseStatus{from},
			Status:         models.StatusAbandoned,
			History: []models.HistoryEntry{{
				Actor:      req.Actor,
				EventType:  models.EventCaseAbandoned,
				FromStatus: from,
				ToStatus:   models.StatusAbandoned,
				Detail:     strings.TrimSpace(req.Reason),
			}},
		})
		if err != nil {
			return nil, err
		}

		o.publish(ctx, c.ID, statusChanged(c.ID, req.Actor, "", from, models.StatusAbandoned))

		return newResult(updated, "case abandoned"), nil
	})
}
