// Package config provides configuration loading for stage agents.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dukex/casegate/pkg/lifecycle"
	"github.com/dukex/casegate/pkg/models"
)

// AgentsConfigFile represents the structure of the agents.yaml file.
type AgentsConfigFile struct {
	Agents []AgentConfig `yaml:"agents" validate:"required,min=1,dive"`
}

// AgentConfig binds one stage to an agent type and its configuration.
type AgentConfig struct {
	Stage         models.Stage   `yaml:"stage"         validate:"required,oneof=requirements design cost value financial"`
	Type          string         `yaml:"type"          validate:"required"`
	Configuration map[string]any `yaml:"configuration"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadAgentsConfig reads and validates the agents configuration at path.
func LoadAgentsConfig(path string) (AgentsConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentsConfigFile{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return ParseAgentsConfig(data)
}

// ParseAgentsConfig decodes and validates YAML agents configuration.
func ParseAgentsConfig(data []byte) (AgentsConfigFile, error) {
	var configFile AgentsConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return AgentsConfigFile{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := ValidateAgentsConfig(configFile); err != nil {
		return AgentsConfigFile{}, err
	}

	return configFile, nil
}

// LoadAgentsConfigOrDefault loads path, falling back to the template agents
// when path is empty.
func LoadAgentsConfigOrDefault(path string) (AgentsConfigFile, error) {
	if path == "" {
		return DefaultAgentsConfig(), nil
	}

	return LoadAgentsConfig(path)
}

// ValidateAgentsConfig checks field constraints, that no stage is bound twice
// and that every generated stage has an agent.
func ValidateAgentsConfig(config AgentsConfigFile) error {
	if err := validate.Struct(config); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				messages = append(messages, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}

			return fmt.Errorf("invalid agents config: %s", strings.Join(messages, "; "))
		}

		return fmt.Errorf("invalid agents config: %w", err)
	}

	seen := make(map[models.Stage]bool, len(config.Agents))

	for i, agent := range config.Agents {
		if seen[agent.Stage] {
			return fmt.Errorf("agents[%d]: stage %s configured twice", i, agent.Stage)
		}

		seen[agent.Stage] = true
	}

	for _, stage := range models.AllStages {
		spec, err := lifecycle.Spec(stage)
		if err != nil {
			return err
		}

		if spec.IsGenerated() && !seen[stage] {
			return fmt.Errorf("no agent configured for stage %s", stage)
		}
	}

	return nil
}

// DefaultAgentsConfig binds every stage to a template agent with sample
// cost and value data.
func DefaultAgentsConfig() AgentsConfigFile {
	return AgentsConfigFile{
		Agents: []AgentConfig{
			{Stage: models.StageRequirements, Type: "template"},
			{Stage: models.StageDesign, Type: "template"},
			{
				Stage: models.StageCost,
				Type:  "template",
				Configuration: map[string]any{
					"data": map[string]any{"total_cost": 19825, "currency": "USD"},
				},
			},
			{
				Stage: models.StageValue,
				Type:  "template",
				Configuration: map[string]any{
					"data": map[string]any{
						"currency": "USD",
						"scenarios": []any{
							map[string]any{"name": "Low", "amount": 75000},
							map[string]any{"name": "Base", "amount": 175000},
							map[string]any{"name": "High", "amount": 350000},
						},
					},
				},
			},
			{Stage: models.StageFinancial, Type: "template"},
		},
	}
}
