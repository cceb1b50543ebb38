// Package protocol defines the contract between the orchestrator and the
// content generators it drives.
package protocol

import (
	"context"

	"github.com/dukex/casegate/pkg/financial"
	"github.com/dukex/casegate/pkg/models"
)

// StageAgent produces the draft document for one pipeline stage.
type StageAgent interface {
	// Generate never returns a Go error; every problem is reported as a Failure.
	Generate(ctx context.Context, req GenerationRequest) Result
}

// AgentFactory builds agents from configuration.
type AgentFactory interface {
	Create(config map[string]any) (StageAgent, error)
	ID() string
}

// UpstreamArtifact is the approved version of an upstream stage handed to an agent.
type UpstreamArtifact struct {
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
	Version int            `json:"version"`
}

// GenerationRequest is everything an agent needs to draft a stage.
type GenerationRequest struct {
	CaseID      string                            `json:"case_id"`
	Title       string                            `json:"title"`
	Description string                            `json:"description"`
	Owner       string                            `json:"owner"`
	Stage       models.Stage                      `json:"stage"`
	Upstream    map[models.Stage]UpstreamArtifact `json:"upstream"`
	Financial   *financial.Summary                `json:"financial,omitempty"`
}

// Result is either Success or Failure.
type Result interface {
	isResult()
}

// Success carries a generated draft.
type Success struct {
	Content  string
	Data     map[string]any
	Metadata models.GenerationMetadata
}

// Failure explains why no draft was produced.
type Failure struct {
	Reason string
	Err    error
}

func (Success) isResult() {}
func (Failure) isResult() {}

func (f Failure) Error() string {
	if f.Err != nil {
		return f.Reason + ": " + f.Err.Error()
	}

	return f.Reason
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Failed builds a Failure from a reason and an optional cause.
func Failed(reason string, err error) Failure {
	return Failure{Reason: reason, Err: err}
}
