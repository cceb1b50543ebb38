package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/protocol"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":     "Billing",
		"cost":     30,
		"approved": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "Billing", result)

	result, err = Render("{{ .approved }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// numbers always decode as float
	result, err = Render("{{ .cost }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_JSONObject(t *testing.T) {
	data := map[string]any{
		"scenarios": []any{"Low", "Base"},
	}

	result, err := Render(`{
		"total_cost": 19825,
		"count": {{ len .scenarios }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 19825.0, resultMap["total_cost"])
	assert.Equal(t, 2.0, resultMap["count"])
}

func TestRender_ErrorHandling(t *testing.T) {
	data := map[string]any{"test": "value"}

	_, err := Render("{ invalid..expression }", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	_, err = Render("{{ nonexistent.field }}", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRenderText_Funcs(t *testing.T) {
	result, err := RenderText(`{{ upper .name }} costs {{ money .cost }}`, map[string]any{
		"name": "billing",
		"cost": 19825.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "BILLING costs 19825.50", result)
}

func TestRequestContext(t *testing.T) {
	req := protocol.GenerationRequest{
		CaseID: "case-1",
		Title:  "New billing system",
		Owner:  "alice",
		Stage:  models.StageDesign,
		Upstream: map[models.Stage]protocol.UpstreamArtifact{
			models.StageRequirements: {Content: "must invoice monthly", Version: 2},
		},
	}

	result, err := RenderText(
		"# {{ .case.title }} ({{ .stage }})\n{{ .upstream.requirements.content }} v{{ .upstream.requirements.version }}",
		RequestContext(req),
	)
	require.NoError(t, err)
	assert.Equal(t, "# New billing system (design)\nmust invoice monthly v2", result)
	assert.NotContains(t, RequestContext(req), "financial")
}
