// Package registry binds pipeline stages to the Stage Agents that draft them.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dukex/casegate/pkg/config"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/protocol"
)

var (
	// ErrAgentNotRegistered is returned when no agent is bound to a stage.
	ErrAgentNotRegistered = errors.New("no agent registered for stage")
	// ErrFactoryNotRegistered is returned when configuration names an unknown agent type.
	ErrFactoryNotRegistered = errors.New("agent type not registered")
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.AgentFactory
	agents    map[models.Stage]protocol.StageAgent
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.AgentFactory),
		agents:    make(map[models.Stage]protocol.StageAgent),
	}
}

func (r *Registry) RegisterFactory(factory protocol.AgentFactory) {
	r.factories[factory.ID()] = factory
}

// Register binds agent to stage, replacing any previous binding.
func (r *Registry) Register(stage models.Stage, agent protocol.StageAgent) {
	r.agents[stage] = agent
}

// Agent returns the agent bound to stage.
func (r *Registry) Agent(stage models.Stage) (protocol.StageAgent, error) {
	agent, ok := r.agents[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotRegistered, stage)
	}

	return agent, nil
}

// Stages returns the bound stages, sorted.
func (r *Registry) Stages() []models.Stage {
	return slices.Sorted(maps.Keys(r.agents))
}

// CreateAgent builds an agent of agentType for stage.
func (r *Registry) CreateAgent(agentType string, stage models.Stage, cfg map[string]any) (protocol.StageAgent, error) {
	factory, ok := r.factories[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrFactoryNotRegistered, agentType)
	}

	agentConfig := maps.Clone(cfg)
	if agentConfig == nil {
		agentConfig = make(map[string]any)
	}

	agentConfig["stage"] = string(stage)

	return factory.Create(agentConfig)
}

// Configure creates and registers one agent per configured stage.
func (r *Registry) Configure(cfg config.AgentsConfigFile) error {
	for _, agentCfg := range cfg.Agents {
		agent, err := r.CreateAgent(agentCfg.Type, agentCfg.Stage, agentCfg.Configuration)
		if err != nil {
			return fmt.Errorf("failed to create %s agent for stage %s: %w", agentCfg.Type, agentCfg.Stage, err)
		}

		r.Register(agentCfg.Stage, agent)

		r.logger.Info("Registered stage agent", "stage", agentCfg.Stage, "type", agentCfg.Type)
	}

	return nil
}

// HealthCheck reports whether every agent generated stage has an agent bound.
func (r *Registry) HealthCheck() (string, bool) {
	var missing []string

	for _, stage := range models.AllStages {
		if stage == models.StageFinancial {
			continue
		}

		if _, ok := r.agents[stage]; !ok {
			missing = append(missing, string(stage))
		}
	}

	if len(missing) > 0 {
		return "Missing stage agents: " + strings.Join(missing, ", "), false
	}

	return fmt.Sprintf("%d stage agents registered", len(r.agents)), true
}
