package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/models"
)

const sampleConfig = `
agents:
  - stage: requirements
    type: template
  - stage: design
    type: http
    configuration:
      url: https://generator.example.com/design
      timeout: 30s
  - stage: cost
    type: template
    configuration:
      data:
        total_cost: 19825
        currency: USD
  - stage: value
    type: template
    configuration:
      data:
        scenarios:
          - name: Base
            amount: 175000
`

func TestLoadAgentsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadAgentsConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 4)

	design := cfg.Agents[1]
	assert.Equal(t, models.StageDesign, design.Stage)
	assert.Equal(t, "http", design.Type)
	assert.Equal(t, "https://generator.example.com/design", design.Configuration["url"])

	costData, ok := cfg.Agents[2].Configuration["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 19825, costData["total_cost"])
}

func TestLoadAgentsConfig_MissingFile(t *testing.T) {
	_, err := LoadAgentsConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParseAgentsConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{"not yaml", "agents: [", "failed to parse YAML"},
		{"empty", "agents: []", "invalid agents config"},
		{"unknown stage", "agents:\n  - stage: marketing\n    type: template\n", "oneof"},
		{"missing type", "agents:\n  - stage: requirements\n", "required"},
		{
			"duplicate stage",
			"agents:\n  - {stage: requirements, type: template}\n  - {stage: requirements, type: http}\n",
			"configured twice",
		},
		{
			"missing generated stage",
			"agents:\n  - {stage: requirements, type: template}\n  - {stage: design, type: template}\n",
			"no agent configured for stage cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAgentsConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadAgentsConfigOrDefault(t *testing.T) {
	cfg, err := LoadAgentsConfigOrDefault("")
	require.NoError(t, err)
	require.NoError(t, ValidateAgentsConfig(cfg))
	assert.Len(t, cfg.Agents, len(models.AllStages))
}
