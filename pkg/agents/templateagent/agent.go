// Package templateagent implements a local Stage Agent that renders drafts
// from text/template definitions.
package templateagent

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/protocol"
	"github.com/dukex/casegate/pkg/template"
)

// ID is the agent type name used in the agents configuration.
const ID = "template"

// ErrStageRequired is returned when the configuration names no stage.
var ErrStageRequired = errors.New("template agent requires a stage")

// Agent renders a content template and an optional data template.
type Agent struct {
	Stage           models.Stage
	ContentTemplate string
	// DataTemplate must render a JSON object; its keys override Data.
	DataTemplate string
	Data         map[string]any
}

// NewAgent builds an agent from configuration. Missing templates fall back to
// the built-in template of the stage.
func NewAgent(config map[string]any) (*Agent, error) {
	stage, _ := config["stage"].(string)
	if stage == "" {
		return nil, ErrStageRequired
	}

	content, _ := config["template"].(string)
	if content == "" {
		content = defaultTemplates[models.Stage(stage)]
	}

	if content == "" {
		return nil, fmt.Errorf("no template for stage %q", stage)
	}

	if _, err := template.Parse(content); err != nil {
		return nil, fmt.Errorf("invalid content template: %w", err)
	}

	dataTemplate, _ := config["data_template"].(string)
	if dataTemplate != "" {
		if _, err := template.Parse(dataTemplate); err != nil {
			return nil, fmt.Errorf("invalid data template: %w", err)
		}
	}

	data, _ := config["data"].(map[string]any)

	return &Agent{
		Stage:           models.Stage(stage),
		ContentTemplate: content,
		DataTemplate:    dataTemplate,
		Data:            data,
	}, nil
}

// Generate renders the draft for req.
func (a *Agent) Generate(ctx context.Context, req protocol.GenerationRequest) protocol.Result {
	if err := ctx.Err(); err != nil {
		return protocol.Failed("generation cancelled", err)
	}

	templateCtx := template.RequestContext(req)

	content, err := template.RenderText(a.ContentTemplate, templateCtx)
	if err != nil {
		return protocol.Failed("content template failed", err)
	}

	data := maps.Clone(a.Data)

	if a.DataTemplate != "" {
		rendered, err := template.Render(a.DataTemplate, templateCtx)
		if err != nil {
			return protocol.Failed("data template failed", err)
		}

		object, ok := rendered.(map[string]any)
		if !ok {
			return protocol.Failed(fmt.Sprintf("data template rendered %T, expected an object", rendered), nil)
		}

		if data == nil {
			data = make(map[string]any, len(object))
		}

		maps.Copy(data, object)
	}

	return protocol.Success{
		Content: content,
		Data:    data,
		Metadata: models.GenerationMetadata{
			Generator: ID,
		},
	}
}

// Factory creates template agents.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.StageAgent, error) {
	return NewAgent(config)
}

func (f *Factory) ID() string {
	return ID
}
