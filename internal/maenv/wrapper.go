// Package maenv exposes the particle environments through one list-based
// contract: observations, rewards, dones and infos come back as slices in a
// fixed agent order, and actions go in the same way.
package maenv

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"distributed-mpe-rl/internal/parallel"
	"distributed-mpe-rl/internal/particle"
	"distributed-mpe-rl/internal/spaces"
)

// Continuous actions may overshoot [-1, 1] by this much before being
// rejected.
const actionTolerance = 1e-3

var (
	ErrActionCount      = errors.New("action count does not match agent count")
	ErrActionShape      = errors.New("action vector has the wrong length")
	ErrActionOutOfRange = errors.New("action should be in range [-1.0, 1.0]")
)

// ParallelEnv is a keyed multi-agent environment.
type ParallelEnv interface {
	PossibleAgents() []string
	ObservationSpace(agent string) spaces.Space
	ActionSpace(agent string) spaces.Space
	Reset(seed *int64) map[string][]float64
	Step(actions map[string]parallel.Action) (map[string][]float64, map[string]float64, map[string]bool, map[string]parallel.Info, error)
}

type Option func(*options)

type options struct {
	seed   int64
	logger *slog.Logger
}

// WithSeed fixes the seed of the underlying environment.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Wrapper adapts a ParallelEnv to ordered lists. The agent order is taken
// from the environment once, at construction, and used for every
// conversion afterwards.
type Wrapper struct {
	env        ParallelEnv
	continuous bool
	agents     []string

	ObservationSpace []spaces.Space
	ActionSpace      []spaces.Space
	ObsShapes        []spaces.Shape
	ActShapes        []spaces.Shape
}

// NewV2 builds one of V2Scenarios as a parallel environment and wraps it.
func NewV2(scenario string, continuous bool, opts ...Option) (*Wrapper, error) {
	if err := validate(scenario, V2Scenarios); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	params := v2Table[scenario]

	sc, err := particle.Load(scenario, params.config)
	if err != nil {
		return nil, err
	}
	env, err := parallel.New(sc, parallel.Options{
		MaxCycles:         maxCycles,
		ContinuousActions: continuous,
		LocalRatio:        params.localRatio,
		Seed:              o.seed,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", scenario, err)
	}
	w, err := Wrap(env, continuous)
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", scenario, err)
	}
	o.logger.Debug("environment ready",
		"scenario", scenario,
		"continuous", continuous,
		"agents", w.agents,
	)
	return w, nil
}

// Wrap adapts an already constructed environment.
func Wrap(env ParallelEnv, continuous bool) (*Wrapper, error) {
	w := &Wrapper{
		env:        env,
		continuous: continuous,
		agents:     env.PossibleAgents(),
	}
	for _, agent := range w.agents {
		obs := env.ObservationSpace(agent)
		act := env.ActionSpace(agent)
		if err := checkActionSpace(act, continuous); err != nil {
			return nil, fmt.Errorf("agent %s: %w", agent, err)
		}
		w.ObservationSpace = append(w.ObservationSpace, obs)
		w.ActionSpace = append(w.ActionSpace, act)
	}

	var err error
	if w.ObsShapes, err = spaces.ShapesOf(w.ObservationSpace); err != nil {
		return nil, err
	}
	if w.ActShapes, err = spaces.ShapesOf(w.ActionSpace); err != nil {
		return nil, err
	}
	return w, nil
}

func checkActionSpace(space spaces.Space, continuous bool) error {
	switch space.(type) {
	case *spaces.Box:
		if continuous {
			return nil
		}
	case *spaces.Discrete:
		if !continuous {
			return nil
		}
	}
	mode := "discrete"
	if continuous {
		mode = "continuous"
	}
	return fmt.Errorf("%w: %v cannot take %s actions", spaces.ErrUnsupportedSpace, space, mode)
}

// N is the number of agents.
func (w *Wrapper) N() int {
	return len(w.agents)
}

// Agents returns the agent order used by every list.
func (w *Wrapper) Agents() []string {
	return append([]string(nil), w.agents...)
}

func (w *Wrapper) Continuous() bool {
	return w.continuous
}

// Reset starts a new episode; seed may be nil.
func (w *Wrapper) Reset(seed *int64) [][]float64 {
	return orderObs(w.agents, w.env.Reset(seed))
}

// Step takes one action vector per agent. In continuous mode each vector is
// mapped from [-1, 1] into the agent's action bounds; in discrete mode the
// index of its largest component is the chosen action.
func (w *Wrapper) Step(actions [][]float64) ([][]float64, []float64, []bool, []parallel.Info, error) {
	if len(actions) != len(w.agents) {
		return nil, nil, nil, nil, fmt.Errorf("%w: got %d, want %d", ErrActionCount, len(actions), len(w.agents))
	}

	native := make(map[string]parallel.Action, len(w.agents))
	for i, agent := range w.agents {
		action, err := w.nativeAction(i, actions[i])
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("agent %s: %w", agent, err)
		}
		native[agent] = action
	}

	obs, rewards, dones, infos, err := w.env.Step(native)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	rewardList := make([]float64, len(w.agents))
	doneList := make([]bool, len(w.agents))
	infoList := make([]parallel.Info, len(w.agents))
	for i, agent := range w.agents {
		rewardList[i] = rewards[agent]
		doneList[i] = dones[agent]
		infoList[i] = infos[agent]
	}
	return orderObs(w.agents, obs), rewardList, doneList, infoList, nil
}

func (w *Wrapper) nativeAction(i int, action []float64) (parallel.Action, error) {
	if !w.continuous {
		n := w.ActionSpace[i].(*spaces.Discrete).N
		if len(action) != n || n == 0 {
			return parallel.Action{}, fmt.Errorf("%w: got %d, want %d", ErrActionShape, len(action), n)
		}
		return parallel.Discrete(floats.MaxIdx(action)), nil
	}

	box := w.ActionSpace[i].(*spaces.Box)
	if len(action) != box.Size() {
		return parallel.Action{}, fmt.Errorf("%w: got %d, want %d", ErrActionShape, len(action), box.Size())
	}
	mapped := make([]float64, len(action))
	for j, a := range action {
		if math.IsNaN(a) || a > 1.0+actionTolerance || a < -1.0-actionTolerance {
			return parallel.Action{}, fmt.Errorf("%w, but got %v", ErrActionOutOfRange, action)
		}
		low, high := box.Low[j], box.High[j]
		mapped[j] = low + (a+1.0)*(high-low)/2.0
	}
	return parallel.Continuous(box.Clip(mapped)), nil
}

func orderObs(agents []string, obs map[string][]float64) [][]float64 {
	out := make([][]float64, len(agents))
	for i, agent := range agents {
		out[i] = obs[agent]
	}
	return out
}
