package maenv

import (
	"fmt"

	"distributed-mpe-rl/internal/multiagent"
	"distributed-mpe-rl/internal/particle"
	"distributed-mpe-rl/internal/spaces"
)

// Legacy is a list-based environment built from a scenario's default
// population. Actions are one-hot style vectors and pass through unchanged.
type Legacy struct {
	*multiagent.Env

	Scenario  string
	ObsShapes []spaces.Shape
	ActShapes []spaces.Shape
}

// New builds one of Scenarios as a list-based environment.
func New(scenario string, opts ...Option) (*Legacy, error) {
	if err := validate(scenario, Scenarios); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	sc, err := particle.Load(scenario, particle.Config{})
	if err != nil {
		return nil, err
	}
	env, err := multiagent.New(sc, o.seed)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", scenario, err)
	}

	l := &Legacy{Env: env, Scenario: scenario}
	if l.ObsShapes, err = spaces.ShapesOf(env.ObservationSpace); err != nil {
		return nil, err
	}
	if l.ActShapes, err = spaces.ShapesOf(env.ActionSpace); err != nil {
		return nil, err
	}
	o.logger.Debug("legacy environment ready", "scenario", scenario, "agents", env.N())
	return l, nil
}
