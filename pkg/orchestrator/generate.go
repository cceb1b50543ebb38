package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/lifecycle"
	"github.com/dukex/casegate/pkg/log"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/protocol"
)

const defaultGenerator = "agent"

// generate drafts spec.Stage and commits the new version with the lane moved to
// drafting. On failure nothing but a stage.generation_failed entry is written and
// the returned case is the latest stored one, so cascades can continue from it.
func (o *Orchestrator) generate(ctx context.Context, op string, c *models.Case, spec lifecycle.StageSpec, actor string) (*models.Case, error) {
	from := spec.Current(c)

	if !lifecycle.CanTransition(from, spec.Drafting) {
		return c, &OperationError{
			Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: spec.Drafting,
			Message: fmt.Sprintf("stage is %s", displayStatus(from)),
			Err:     ErrStateMismatch,
		}
	}

	req, err := generationRequest(c, spec)
	if err != nil {
		return c, &OperationError{
			Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: spec.Drafting,
			Message: err.Error(),
			Err:     ErrMissingPrerequisiteArtifact,
		}
	}

	var result protocol.Result

	agent, err := o.agents.Agent(spec.Stage)
	if err != nil {
		result = protocol.Failed("no stage agent available", err)
	} else {
		result = o.invoke(ctx, agent, req)
	}

	success, failure := outcome(result)
	if failure != nil {
		return o.recordGenerationFailure(ctx, op, c, spec, from, actor, *failure)
	}

	metadata := success.Metadata
	if metadata.Generator == "" {
		metadata.Generator = defaultGenerator
	}

	update := &models.CaseUpdate{
		ExpectVersion: c.Version,
		ExpectStages:  map[models.Stage]models.CaseStatus{spec.Stage: c.StageStatus(spec.Stage)},
		Status:        spec.Drafting,
		SetStages:     map[models.Stage]models.CaseStatus{spec.Stage: spec.Drafting},
		AddVersions: map[models.Stage]models.ArtifactVersion{spec.Stage: {
			Content:  success.Content,
			Data:     success.Data,
			Metadata: metadata,
		}},
		History: []models.HistoryEntry{{
			Actor:      actor,
			EventType:  models.EventStageGenerated,
			Stage:      spec.Stage,
			FromStatus: from,
			ToStatus:   spec.Drafting,
			Detail:     "generated by " + metadata.Generator,
		}},
	}

	if c.StageStatus(spec.Stage) == "" {
		update.RequireNoArtifact = []models.Stage{spec.Stage}
	}

	updated, err := o.commit(ctx, op, c, spec.Stage, from, spec.Drafting, update)
	if err != nil {
		return c, err
	}

	o.publish(ctx, c.ID, statusChanged(c.ID, actor, spec.Stage, from, spec.Drafting))

	return updated, nil
}

func (o *Orchestrator) recordGenerationFailure(ctx context.Context, op string, c *models.Case, spec lifecycle.StageSpec,
	from models.CaseStatus, actor string, failure protocol.Failure,
) (*models.Case, error) {
	logger := log.FromContext(ctx, o.logger)
	logger.WarnContext(ctx, "Stage agent failed", "stage", spec.Stage, "reason", failure.Error())

	updated, err := o.cases.Apply(ctx, c.ID, &models.CaseUpdate{
		ExpectVersion: c.Version,
		History: []models.HistoryEntry{{
			Actor:      actor,
			EventType:  models.EventStageGenerationFailed,
			Stage:      spec.Stage,
			FromStatus: from,
			Detail:     failure.Error(),
		}},
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record generation failure", "stage", spec.Stage, "error", err)

		updated = c
	} else {
		o.publish(ctx, c.ID, events.StageGenerationFailed{
			BaseEvent: events.NewBaseEvent(events.StageGenerationFailedEvent, c.ID, actor),
			Stage:     spec.Stage,
			Reason:    failure.Error(),
		})
	}

	return updated, &OperationError{
		Op: op, CaseID: c.ID, Stage: spec.Stage, From: from, To: spec.Drafting,
		Message: "stage agent failed",
		Err:     wrap(ErrGenerationFailure, failure),
	}
}

// invoke calls agent under the generation timeout. An agent that ignores its
// context is abandoned once the deadline passes.
func (o *Orchestrator) invoke(ctx context.Context, agent protocol.StageAgent, req protocol.GenerationRequest) protocol.Result {
	ctx, cancel := context.WithTimeout(ctx, o.generationTimeout)
	defer cancel()

	done := make(chan protocol.Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- protocol.Failed(fmt.Sprintf("agent panicked: %v", r), nil)
			}
		}()

		done <- agent.Generate(ctx, req)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return protocol.Failed("generation timed out", ctx.Err())
	}
}

// outcome matches the agent result exhaustively.
func outcome(result protocol.Result) (*protocol.Success, *protocol.Failure) {
	var failure protocol.Failure

	switch r := result.(type) {
	case protocol.Success:
		if strings.TrimSpace(r.Content) != "" {
			return &r, nil
		}

		failure = protocol.Failed("agent returned empty content", nil)
	case protocol.Failure:
		failure = r
	default:
		failure = protocol.Failed(fmt.Sprintf("agent returned unexpected result %T", result), nil)
	}

	return nil, &failure
}

// generationRequest collects the latest approved version of every upstream stage.
func generationRequest(c *models.Case, spec lifecycle.StageSpec) (protocol.GenerationRequest, error) {
	req := protocol.GenerationRequest{
		CaseID:      c.ID,
		Title:       c.Title,
		Description: c.Description,
		Owner:       c.Owner,
		Stage:       spec.Stage,
		Upstream:    make(map[models.Stage]protocol.UpstreamArtifact, len(spec.Upstream)),
	}

	for _, upstream := range spec.Upstream {
		approved := c.Artifact(upstream).Approved()
		if approved == nil {
			return req, fmt.Errorf("stage %s has no approved artifact", upstream)
		}

		req.Upstream[upstream] = protocol.UpstreamArtifact{
			Content: approved.Content,
			Data:    approved.Data,
			Version: approved.Version,
		}
	}

	return req, nil
}
