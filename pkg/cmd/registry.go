// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/casegate/pkg/agents/httpagent"
	"github.com/dukex/casegate/pkg/agents/templateagent"
	"github.com/dukex/casegate/pkg/config"
	"github.com/dukex/casegate/pkg/registry"
)

func registerNativeAgents(reg *registry.Registry) {
	reg.RegisterFactory(templateagent.NewFactory())
	reg.RegisterFactory(httpagent.NewFactory())
}

// NewRegistry builds the stage agent registry from the agents configuration at
// path, or from the built-in template agents when path is empty.
func NewRegistry(log *slog.Logger, agentsConfigPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	registerNativeAgents(reg)

	cfg, err := config.LoadAgentsConfigOrDefault(agentsConfigPath)
	if err != nil {
		return nil, err
	}

	if err := reg.Configure(cfg); err != nil {
		return nil, fmt.Errorf("failed to configure agents: %w", err)
	}

	return reg, nil
}
