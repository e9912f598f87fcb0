// Package multiagent runs a particle scenario behind a list-based
// environment: agents are addressed by position and act with one-hot style
// vectors, one chunk per discrete sub-space.
package multiagent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"distributed-mpe-rl/internal/particle"
	"distributed-mpe-rl/internal/spaces"
)

var (
	ErrActionCount = errors.New("one action per agent required")
	ErrActionShape = errors.New("action vector does not match action space")
	ErrNoActions   = errors.New("agent can neither move nor communicate")
)

type Info map[string]any

type Env struct {
	scenario particle.Scenario
	world    *particle.World
	rng      *rand.Rand

	ObservationSpace []spaces.Space
	ActionSpace      []spaces.Space
	// SharedReward gives every agent the team total; set for collaborative
	// worlds.
	SharedReward bool
}

func New(scenario particle.Scenario, seed int64) (*Env, error) {
	if seed == 0 {
		seed = rand.Int63()
	}
	world := scenario.MakeWorld()
	e := &Env{
		scenario:     scenario,
		world:        world,
		SharedReward: world.Collaborative,
	}
	e.Seed(seed)
	scenario.ResetWorld(world, e.rng)

	for _, agent := range world.Agents {
		act, err := e.actionSpace(agent)
		if err != nil {
			return nil, fmt.Errorf("%s: agent %q: %w", scenario.Name(), agent.Name, err)
		}
		e.ActionSpace = append(e.ActionSpace, act)
		obsDim := len(scenario.Observation(agent, world))
		e.ObservationSpace = append(e.ObservationSpace, spaces.NewBox(math.Inf(-1), math.Inf(1), obsDim))
	}
	return e, nil
}

// actionSpace combines a Discrete movement space and a Discrete
// communication space into a MultiDiscrete when the agent has both.
func (e *Env) actionSpace(agent *particle.Agent) (spaces.Space, error) {
	moveDim := e.world.DimP*2 + 1
	var bounds [][2]int
	if agent.Movable {
		bounds = append(bounds, [2]int{0, moveDim - 1})
	}
	if !agent.Silent && e.world.DimC > 0 {
		bounds = append(bounds, [2]int{0, e.world.DimC - 1})
	}
	switch len(bounds) {
	case 0:
		return nil, ErrNoActions
	case 1:
		return spaces.NewDiscrete(bounds[0][1] + 1), nil
	default:
		return spaces.NewMultiDiscrete(bounds...), nil
	}
}

// Seed replaces the random source used by resets and noise.
func (e *Env) Seed(seed int64) {
	e.rng = rand.New(rand.NewSource(seed))
	e.world.Rand = e.rng
}

// N is the number of agents.
func (e *Env) N() int {
	return len(e.world.Agents)
}

func (e *Env) World() *particle.World {
	return e.world
}

func (e *Env) Reset() [][]float64 {
	e.scenario.ResetWorld(e.world, e.rng)
	return e.observations()
}

func (e *Env) Step(actions [][]float64) ([][]float64, []float64, []bool, []Info, error) {
	if len(actions) != e.N() {
		return nil, nil, nil, nil, fmt.Errorf("%w: got %d, want %d", ErrActionCount, len(actions), e.N())
	}
	for i, agent := range e.world.Agents {
		if err := e.setAction(agent, e.ActionSpace[i], actions[i]); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("agent %d: %w", i, err)
		}
	}
	e.world.Step()

	rewards := make([]float64, e.N())
	dones := make([]bool, e.N())
	infos := make([]Info, e.N())
	var total float64
	for i, agent := range e.world.Agents {
		rewards[i] = e.reward(agent)
		total += rewards[i]
		infos[i] = Info{}
	}
	if e.SharedReward {
		for i := range rewards {
			rewards[i] = total
		}
	}
	return e.observations(), rewards, dones, infos, nil
}

// reward folds a scenario's global reward into every agent's own reward.
func (e *Env) reward(agent *particle.Agent) float64 {
	rew := e.scenario.Reward(agent, e.world)
	if g, ok := e.scenario.(particle.GlobalRewarder); ok {
		rew += g.GlobalReward(e.world)
	}
	return rew
}

func (e *Env) observations() [][]float64 {
	obs := make([][]float64, e.N())
	for i, agent := range e.world.Agents {
		obs[i] = e.scenario.Observation(agent, e.world)
	}
	return obs
}

func (e *Env) setAction(agent *particle.Agent, space spaces.Space, action []float64) error {
	shape, err := spaces.ShapeOf(space)
	if err != nil {
		return err
	}
	if len(action) != shape.Size() {
		return fmt.Errorf("%w: length %d, %v wants %d", ErrActionShape, len(action), space, shape.Size())
	}

	w := e.world
	agent.Action = particle.Action{
		U: make([]float64, w.DimP),
		C: make([]float64, w.DimC),
	}
	if agent.Movable {
		moveDim := w.DimP*2 + 1
		agent.Action.U[0] += action[1] - action[2]
		agent.Action.U[1] += action[3] - action[4]
		sensitivity := particle.Sensitivity
		if agent.Accel > 0 {
			sensitivity = agent.Accel
		}
		floats.Scale(sensitivity, agent.Action.U)
		action = action[moveDim:]
	}
	if !agent.Silent {
		copy(agent.Action.C, action)
	}
	return nil
}
