// Package parallel runs a particle scenario as a parallel multi-agent
// environment: every agent acts each tick and results are keyed by agent
// name.
package parallel

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"distributed-mpe-rl/internal/particle"
	"distributed-mpe-rl/internal/spaces"
)

const defaultMaxCycles = 25

var (
	ErrEpisodeOver   = errors.New("episode is over, reset the environment")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrMissingAction = errors.New("missing action")
	ErrInvalidAction = errors.New("action outside action space")
	ErrLocalRatio    = errors.New("local ratio needs a scenario with a global reward")
)

type Options struct {
	MaxCycles         int
	ContinuousActions bool
	// LocalRatio mixes each agent's own reward with the scenario's global
	// reward: global*(1-r) + local*r. Nil uses the local reward only.
	LocalRatio *float64
	Seed       int64
}

// Action is the native action of one agent: Index in discrete mode, Vector
// in continuous mode.
type Action struct {
	Index  int
	Vector []float64
}

func Discrete(i int) Action {
	return Action{Index: i}
}

func Continuous(v []float64) Action {
	return Action{Vector: v}
}

type Info map[string]any

type Env struct {
	scenario particle.Scenario
	world    *particle.World
	opts     Options

	agents    []string
	byName    map[string]*particle.Agent
	obsSpaces map[string]spaces.Space
	actSpaces map[string]spaces.Space

	rng    *rand.Rand
	cycles int
	done   bool
}

func New(scenario particle.Scenario, opts Options) (*Env, error) {
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = defaultMaxCycles
	}
	if opts.LocalRatio != nil {
		if _, ok := scenario.(particle.GlobalRewarder); !ok {
			return nil, fmt.Errorf("%w: %s", ErrLocalRatio, scenario.Name())
		}
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Int63()
	}

	world := scenario.MakeWorld()
	e := &Env{
		scenario:  scenario,
		world:     world,
		opts:      opts,
		byName:    make(map[string]*particle.Agent, len(world.Agents)),
		obsSpaces: make(map[string]spaces.Space, len(world.Agents)),
		actSpaces: make(map[string]spaces.Space, len(world.Agents)),
	}
	e.seed(opts.Seed)
	scenario.ResetWorld(world, e.rng)

	for _, agent := range world.Agents {
		if _, dup := e.byName[agent.Name]; dup {
			return nil, fmt.Errorf("duplicate agent name %q in %s", agent.Name, scenario.Name())
		}
		e.agents = append(e.agents, agent.Name)
		e.byName[agent.Name] = agent
		obsDim := len(scenario.Observation(agent, world))
		e.obsSpaces[agent.Name] = spaces.NewBox(math.Inf(-1), math.Inf(1), obsDim)
		e.actSpaces[agent.Name] = e.actionSpace(agent)
	}
	return e, nil
}

func (e *Env) seed(seed int64) {
	e.rng = rand.New(rand.NewSource(seed))
	e.world.Rand = e.rng
}

// actionSpace is a flat Box in [0, 1] over movement and communication
// components in continuous mode, and one Discrete over their product
// otherwise.
func (e *Env) actionSpace(agent *particle.Agent) spaces.Space {
	moveDim := e.world.DimP*2 + 1
	if e.opts.ContinuousActions {
		dim := 0
		if agent.Movable {
			dim += moveDim
		}
		if !agent.Silent {
			dim += e.world.DimC
		}
		return spaces.NewBox(0, 1, dim)
	}
	n := 1
	if agent.Movable {
		n *= moveDim
	}
	if !agent.Silent && e.world.DimC > 0 {
		n *= e.world.DimC
	}
	return spaces.NewDiscrete(n)
}

// PossibleAgents lists agent names in world order.
func (e *Env) PossibleAgents() []string {
	return append([]string(nil), e.agents...)
}

func (e *Env) ObservationSpace(agent string) spaces.Space {
	return e.obsSpaces[agent]
}

func (e *Env) ActionSpace(agent string) spaces.Space {
	return e.actSpaces[agent]
}

func (e *Env) ObservationSpaces() map[string]spaces.Space {
	out := make(map[string]spaces.Space, len(e.obsSpaces))
	for k, v := range e.obsSpaces {
		out[k] = v
	}
	return out
}

func (e *Env) ActionSpaces() map[string]spaces.Space {
	out := make(map[string]spaces.Space, len(e.actSpaces))
	for k, v := range e.actSpaces {
		out[k] = v
	}
	return out
}

func (e *Env) World() *particle.World {
	return e.world
}

// Reset starts a new episode, reseeding first when seed is non-nil.
func (e *Env) Reset(seed *int64) map[string][]float64 {
	if seed != nil {
		e.seed(*seed)
	}
	e.scenario.ResetWorld(e.world, e.rng)
	e.cycles = 0
	e.done = false
	return e.observations()
}

// Step applies one action per agent and advances the world one tick.
func (e *Env) Step(actions map[string]Action) (map[string][]float64, map[string]float64, map[string]bool, map[string]Info, error) {
	if e.done {
		return nil, nil, nil, nil, ErrEpisodeOver
	}
	for name := range actions {
		if _, ok := e.byName[name]; !ok {
			return nil, nil, nil, nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
		}
	}
	for _, name := range e.agents {
		action, ok := actions[name]
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("%w for agent %q", ErrMissingAction, name)
		}
		if err := e.setAction(e.byName[name], e.actSpaces[name], action); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("agent %q: %w", name, err)
		}
	}

	e.world.Step()
	e.cycles++
	if e.cycles >= e.opts.MaxCycles {
		e.done = true
	}

	rewards := e.rewards()
	dones := make(map[string]bool, len(e.agents))
	infos := make(map[string]Info, len(e.agents))
	for _, name := range e.agents {
		dones[name] = e.done
		infos[name] = Info{"cycle": e.cycles}
	}
	return e.observations(), rewards, dones, infos, nil
}

func (e *Env) observations() map[string][]float64 {
	obs := make(map[string][]float64, len(e.agents))
	for _, name := range e.agents {
		obs[name] = e.scenario.Observation(e.byName[name], e.world)
	}
	return obs
}

func (e *Env) rewards() map[string]float64 {
	var global float64
	if e.opts.LocalRatio != nil {
		global = e.scenario.(particle.GlobalRewarder).GlobalReward(e.world)
	}
	rewards := make(map[string]float64, len(e.agents))
	for _, name := range e.agents {
		local := e.scenario.Reward(e.byName[name], e.world)
		if r := e.opts.LocalRatio; r != nil {
			rewards[name] = global*(1-*r) + local*(*r)
			continue
		}
		rewards[name] = local
	}
	return rewards
}

func (e *Env) setAction(agent *particle.Agent, space spaces.Space, action Action) error {
	w := e.world
	moveDim := w.DimP*2 + 1
	agent.Action = particle.Action{
		U: make([]float64, w.DimP),
		C: make([]float64, w.DimC),
	}
	u := agent.Action.U

	if e.opts.ContinuousActions {
		box := space.(*spaces.Box)
		if !box.Contains(action.Vector) {
			return fmt.Errorf("%w: %v not in %v", ErrInvalidAction, action.Vector, box)
		}
		v := action.Vector
		if agent.Movable {
			u[0] += v[1] - v[2]
			u[1] += v[3] - v[4]
			v = v[moveDim:]
		}
		if !agent.Silent {
			copy(agent.Action.C, v)
		}
	} else {
		discrete := space.(*spaces.Discrete)
		if !discrete.Contains(action.Index) {
			return fmt.Errorf("%w: %d not in %v", ErrInvalidAction, action.Index, discrete)
		}
		idx := action.Index
		if agent.Movable {
			switch idx % moveDim {
			case 1:
				u[0] = -1
			case 2:
				u[0] = 1
			case 3:
				u[1] = -1
			case 4:
				u[1] = 1
			}
			idx /= moveDim
		}
		if !agent.Silent && w.DimC > 0 {
			agent.Action.C[idx] = 1
		}
	}

	sensitivity := particle.Sensitivity
	if agent.Accel > 0 {
		sensitivity = agent.Accel
	}
	floats.Scale(sensitivity, u)
	return nil
}
