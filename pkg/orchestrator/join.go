package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/financial"
	"github.com/dukex/casegate/pkg/lifecycle"
	"github.com/dukex/casegate/pkg/log"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/otelhelper"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/protocol"
)

const (
	joinOp             = "join"
	financialGenerator = "financial-engine"
	recoverPageSize    = 100
)

// CheckAndTriggerJoin runs the financial join once both the cost and the value
// stages are approved, in whichever order that happened. It is idempotent: with
// one approval it records a single waiting entry, and once the join has started
// or produced the financial artifact further calls change nothing.
func (o *Orchestrator) CheckAndTriggerJoin(ctx context.Context, req Request) (*Result, error) {
	req.Stage = ""

	return o.run(ctx, joinOp, req, func(ctx context.Context, c *models.Case, req Request) (*Result, error) {
		return o.checkAndTriggerJoin(ctx, c, req.Actor)
	})
}

func (o *Orchestrator) checkAndTriggerJoin(ctx context.Context, c *models.Case, actor string) (*Result, error) {
	logger := log.FromContext(ctx, o.logger)

	if c.Artifact(models.StageFinancial).Current() != nil || c.Status == models.StatusJoinInProgress {
		return newResult(c, "join already handled"), nil
	}

	if lifecycle.IsTerminal(c.Status) {
		return newResult(c, "case is %s", c.Status), nil
	}

	var missing []string

	for _, branch := range lifecycle.JoinBranches {
		if !c.HasEvent(models.EventStageApproved, branch) {
			missing = append(missing, string(branch))
		}
	}

	if len(missing) > 0 {
		return o.recordJoinWaiting(ctx, c, actor, missing)
	}

	from := c.Status
	if !lifecycle.CanTransition(from, models.StatusJoinInProgress) {
		return nil, &OperationError{
			Op: joinOp, CaseID: c.ID, From: from, To: models.StatusJoinInProgress,
			Message: fmt.Sprintf("case is %s", from),
			Err:     ErrStateMismatch,
		}
	}

	summary, err := computeSummary(c)
	if err != nil {
		return nil, err
	}

	started, err := o.cases.Apply(ctx, c.ID, &models.CaseUpdate{
		ExpectStatuses: []models.CaseStatus{models.StatusCostApproved, models.StatusValueApproved},
		ExpectStages: map[models.Stage]models.CaseStatus{
			models.StageCost:  models.StatusCostApproved,
			models.StageValue: models.StatusValueApproved,
		},
		RequireNoArtifact: []models.Stage{models.StageFinancial},
		Status:            models.StatusJoinInProgress,
		History: []models.HistoryEntry{{
			Actor:      actor,
			EventType:  models.EventJoinStarted,
			FromStatus: from,
			ToStatus:   models.StatusJoinInProgress,
		}},
	})
	if errors.Is(err, persistence.ErrConditionFailed) {
		logger.InfoContext(ctx, "Join already started elsewhere", "error", err)

		current, loadErr := o.cases.GetByID(ctx, c.ID)
		if loadErr != nil {
			current = c
		}

		return newResult(current, "join already handled"), nil
	}

	if err != nil {
		return nil, &OperationError{
			Op: joinOp, CaseID: c.ID, From: from, To: models.StatusJoinInProgress,
			Message: "failed to start join",
			Err:     wrap(classify(err), err),
		}
	}

	o.publish(ctx, c.ID, statusChanged(c.ID, actor, "", from, models.StatusJoinInProgress))

	version, failure := o.financialVersion(ctx, started, summary)
	if failure != nil {
		reverted, revertErr := o.revertJoin(ctx, started, from, actor, failure.Error())
		if revertErr != nil {
			logger.ErrorContext(ctx, "Failed to revert join", "error", revertErr)
		}

		result := &Result{Case: reverted, NewStatus: from, Message: "join failed; reverted to " + string(from)}
		if reverted == nil {
			result = nil
		}

		return result, &OperationError{
			Op: joinOp, CaseID: c.ID, Stage: models.StageFinancial, From: models.StatusJoinInProgress, To: models.StatusJoinComplete,
			Message: "financial join failed",
			Err:     errors.Join(wrap(ErrGenerationFailure, failure), revertErr),
		}
	}

	primary := summary.PrimaryResult()

	done, err := o.commit(ctx, joinOp, started, models.StageFinancial, models.StatusJoinInProgress, models.StatusJoinComplete,
		&models.CaseUpdate{
			ExpectStatuses:    []models.CaseStatus{models.StatusJoinInProgress},
			RequireNoArtifact: []models.Stage{models.StageFinancial},
			Status:            models.StatusJoinComplete,
			SetStages:         map[models.Stage]models.CaseStatus{models.StageFinancial: models.StatusJoinComplete},
			AddVersions:       map[models.Stage]models.ArtifactVersion{models.StageFinancial: version},
			History: []models.HistoryEntry{{
				Actor:      actor,
				EventType:  models.EventJoinCompleted,
				Stage:      models.StageFinancial,
				FromStatus: models.StatusJoinInProgress,
				ToStatus:   models.StatusJoinComplete,
				Detail:     fmt.Sprintf("primary scenario %s, ROI %s%%", primary.Name, primary.ROIPercent),
			}},
		})
	if err != nil {
		if errors.Is(err, ErrStateMismatch) {
			return nil, err
		}

		reverted, revertErr := o.revertJoin(ctx, started, from, actor, "failed to store financial artifact")
		if revertErr != nil {
			logger.ErrorContext(ctx, "Failed to revert join; left for the stalled join sweep", "error", revertErr)

			return nil, err
		}

		return &Result{Case: reverted, NewStatus: from, Message: "join failed; reverted to " + string(from)}, err
	}

	o.publish(ctx, c.ID,
		statusChanged(c.ID, actor, models.StageFinancial, models.StatusJoinInProgress, models.StatusJoinComplete),
		events.JoinCompleted{
			BaseEvent:  events.NewBaseEvent(events.JoinCompletedEvent, c.ID, actor),
			Primary:    summary.Primary,
			Currency:   summary.Currency,
			ROIPercent: primary.ROIPercent.String(),
		},
	)

	return newResult(done, "financial summary computed"), nil
}

// recordJoinWaiting appends the waiting entry the first time one branch is approved.
func (o *Orchestrator) recordJoinWaiting(ctx context.Context, c *models.Case, actor string, missing []string) (*Result, error) {
	message := "waiting for " + strings.Join(missing, " and ") + " approval"

	if len(missing) == len(lifecycle.JoinBranches) || c.LastEvent(models.EventJoinWaiting) != nil {
		return newResult(c, "%s", message), nil
	}

	updated, err := o.cases.Apply(ctx, c.ID, &models.CaseUpdate{
		ExpectVersion: c.Version,
		History: []models.HistoryEntry{{
			Actor:     actor,
			EventType: models.EventJoinWaiting,
			Detail:    message,
		}},
	})
	if err != nil {
		log.FromContext(ctx, o.logger).WarnContext(ctx, "Failed to record join waiting", "error", err)

		updated = c
	}

	return newResult(updated, "%s", message), nil
}

// computeSummary validates the approved cost and value data and computes the
// summary before anything is written.
func computeSummary(c *models.Case) (*financial.Summary, error) {
	cost := c.Artifact(models.StageCost).Approved()
	value := c.Artifact(models.StageValue).Approved()

	if cost == nil || value == nil {
		return nil, &OperationError{
			Op: joinOp, CaseID: c.ID, Stage: models.StageFinancial, From: c.Status, To: models.StatusJoinInProgress,
			Message: "cost and value need approved artifacts",
			Err:     ErrMissingPrerequisiteArtifact,
		}
	}

	money, scenarios, err := financial.FromArtifactData(cost.Data, value.Data)
	if err == nil {
		var summary *financial.Summary

		summary, err = financial.Compute(money, scenarios)
		if err == nil {
			return summary, nil
		}
	}

	return nil, &OperationError{
		Op: joinOp, CaseID: c.ID, Stage: models.StageFinancial, From: c.Status, To: models.StatusJoinInProgress,
		Message: "invalid financial inputs",
		Err:     wrap(ErrValidation, err),
	}
}

// checkBranchData validates the structured data of a cost or value draft.
func checkBranchData(op string, c *models.Case, spec lifecycle.StageSpec, from, to models.CaseStatus, data map[string]any) error {
	var err error

	switch {
	case !spec.JoinBranch:
		return nil
	case spec.Stage == models.StageCost:
		_, err = financial.CostFromData(data)
	case spec.Stage == models.StageValue:
		_, err = financial.ScenariosFromData(data)
	}

	if err == nil {
		return nil
	}

	return &OperationError{
		Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: to,
		Message: "invalid financial inputs",
		Err:     wrap(ErrValidation, err),
	}
}

// financialVersion builds the financial artifact version. A narrative agent
// registered for the financial stage writes the content; without one the
// summary's plain rendition is used.
func (o *Orchestrator) financialVersion(ctx context.Context, c *models.Case, summary *financial.Summary) (models.ArtifactVersion, *protocol.Failure) {
	data, err := summary.ToData()
	if err != nil {
		failure := protocol.Failed("failed to encode financial summary", err)

		return models.ArtifactVersion{}, &failure
	}

	version := models.ArtifactVersion{
		Content:  summary.Render(),
		Data:     data,
		Metadata: models.GenerationMetadata{Generator: financialGenerator},
	}

	agent, err := o.agents.Agent(models.StageFinancial)
	if err != nil {
		log.FromContext(ctx, o.logger).DebugContext(ctx, "No narrative agent for the financial stage", "error", err)

		return version, nil
	}

	spec, err := lifecycle.Spec(models.StageFinancial)
	if err != nil {
		failure := protocol.Failed("financial stage is not configured", err)

		return version, &failure
	}

	req, err := generationRequest(c, spec)
	if err != nil {
		failure := protocol.Failed("financial narrative inputs missing", err)

		return version, &failure
	}

	req.Financial = summary

	success, failure := outcome(o.invoke(ctx, agent, req))
	if failure != nil {
		return version, failure
	}

	version.Content = success.Content
	version.Metadata = success.Metadata

	if version.Metadata.Generator == "" {
		version.Metadata.Generator = defaultGenerator
	}

	return version, nil
}

// revertJoin moves a case out of join_in_progress back to the branch approval it
// held before the join and appends join.failed.
func (o *Orchestrator) revertJoin(ctx context.Context, c *models.Case, to models.CaseStatus, actor, reason string) (*models.Case, error) {
	if !lifecycle.CanTransition(models.StatusJoinInProgress, to) {
		return nil, &OperationError{
			Op: joinOp, CaseID: c.ID, From: models.StatusJoinInProgress, To: to,
			Message: "cannot revert join", Err: ErrStateMismatch,
		}
	}

	reverted, err := o.commit(ctx, joinOp, c, "", models.StatusJoinInProgress, to, &models.CaseUpdate{
		ExpectVersion:  c.Version,
		ExpectStatuses: []models.CaseStatus{models.StatusJoinInProgress},
		Status:         to,
		History: []models.HistoryEntry{{
			Actor:      actor,
			EventType:  models.EventJoinFailed,
			Stage:      models.StageFinancial,
			FromStatus: models.StatusJoinInProgress,
			ToStatus:   to,
			Detail:     reason,
		}},
	})
	if err != nil {
		return nil, err
	}

	o.publish(ctx, c.ID,
		statusChanged(c.ID, actor, "", models.StatusJoinInProgress, to),
		events.JoinFailed{
			BaseEvent:  events.NewBaseEvent(events.JoinFailedEvent, c.ID, actor),
			RevertedTo: to,
			Reason:     reason,
		},
	)

	return reverted, nil
}

// RecoverStalledJoins reverts cases left in join_in_progress for longer than
// olderThan, which only happens when a process died between the join writes.
// It returns the number of cases reverted.
func (o *Orchestrator) RecoverStalledJoins(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.recover_stalled_joins")
	defer span.End()

	cutoff := o.now().Add(-olderThan)
	opts := persistence.ListCasesOptions{
		Status:        models.StatusJoinInProgress,
		UpdatedBefore: cutoff,
		Limit:         recoverPageSize,
		SortBy:        "updated_at",
		SortOrder:     "asc",
	}

	recovered := 0

	for {
		page, err := o.cases.List(ctx, opts)
		if err != nil {
			err = wrap(ErrPersistenceFailure, err)
			otelhelper.SetError(span, err)

			return recovered, err
		}

		skipped := 0

		for _, c := range page.Cases {
			ok, err := o.recoverJoin(ctx, c.ID, cutoff)
			if err != nil {
				o.logger.ErrorContext(ctx, "Failed to recover stalled join", "case_id", c.ID, "error", err)
			}

			if ok {
				recovered++
			} else {
				skipped++
			}
		}

		if !page.HasNextPage || ctx.Err() != nil {
			break
		}

		opts.Offset += skipped
	}

	if recovered > 0 {
		o.logger.InfoContext(ctx, "Recovered stalled joins", "count", recovered)
	}

	return recovered, ctx.Err()
}

func (o *Orchestrator) recoverJoin(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	release := o.locks.lock(id)
	defer release()

	c, err := o.cases.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if c.Status != models.StatusJoinInProgress || !c.UpdatedAt.Before(cutoff) {
		return false, nil
	}

	to := models.StatusValueApproved
	if started := c.LastEvent(models.EventJoinStarted); started != nil && lifecycle.CanTransition(models.StatusJoinInProgress, started.FromStatus) {
		to = started.FromStatus
	}

	reason := fmt.Sprintf("join stalled since %s", c.UpdatedAt.UTC().Format(time.RFC3339))

	if _, err := o.revertJoin(ctx, c, to, models.SystemActor, reason); err != nil {
		return false, err
	}

	return true, nil
}
