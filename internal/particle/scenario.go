package particle

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario builds a world and defines its rewards and observations.
type Scenario interface {
	Name() string
	MakeWorld() *World
	ResetWorld(w *World, rng *rand.Rand)
	Reward(agent *Agent, w *World) float64
	Observation(agent *Agent, w *World) []float64
}

// GlobalRewarder is implemented by scenarios with a team reward that can be
// mixed with the per-agent reward.
type GlobalRewarder interface {
	GlobalReward(w *World) float64
}

// Config carries the population parameters a scenario accepts. Zero fields
// take the scenario default.
type Config struct {
	N              int
	NumGood        int
	NumAdversaries int
	NumObstacles   int
	NumFood        int
	NumForests     int
}

type builder func(cfg Config) Scenario

var builders = map[string]builder{
	"simple":                  func(Config) Scenario { return simple{} },
	"simple_adversary":        newAdversary,
	"simple_crypto":           func(Config) Scenario { return crypto{} },
	"simple_push":             func(Config) Scenario { return push{} },
	"simple_reference":        func(Config) Scenario { return reference{} },
	"simple_speaker_listener": func(Config) Scenario { return speakerListener{} },
	"simple_spread":           newSpread,
	"simple_tag":              newTag,
	"simple_world_comm":       newWorldComm,
}

var scenarioNames = []string{
	"simple",
	"simple_adversary",
	"simple_crypto",
	"simple_push",
	"simple_reference",
	"simple_speaker_listener",
	"simple_spread",
	"simple_tag",
	"simple_world_comm",
}

// Load builds the named scenario.
func Load(name string, cfg Config) (Scenario, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid scenarios include [%s])", ErrUnknownScenario, name, strings.Join(scenarioNames, ", "))
	}
	return build(cfg), nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func uniformVec(rng *rand.Rand, low, high float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = low + rng.Float64()*(high-low)
	}
	return out
}

// placeAgents puts every agent at a uniform position in [low, high] with
// zero velocity and a silent channel.
func placeAgents(w *World, rng *rand.Rand, low, high float64) {
	for _, a := range w.Agents {
		a.Pos = uniformVec(rng, low, high, w.DimP)
		a.Vel = make([]float64, w.DimP)
		a.Comm = make([]float64, w.DimC)
		a.Action = Action{}
	}
}

func placeLandmarks(landmarks []*Landmark, w *World, rng *rand.Rand, low, high float64) {
	for _, l := range landmarks {
		l.Pos = uniformVec(rng, low, high, w.DimP)
		l.Vel = make([]float64, w.DimP)
	}
}

func color(r, g, b float64) []float64 {
	return []float64{r, g, b}
}

func concat(parts ...[]float64) []float64 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func goodAgents(w *World) []*Agent {
	var out []*Agent
	for _, a := range w.Agents {
		if !a.Adversary {
			out = append(out, a)
		}
	}
	return out
}

func adversaries(w *World) []*Agent {
	var out []*Agent
	for _, a := range w.Agents {
		if a.Adversary {
			out = append(out, a)
		}
	}
	return out
}

// landmarkOffsets returns the position of each non-boundary landmark relative
// to the agent.
func landmarkOffsets(agent *Agent, w *World) []float64 {
	var out []float64
	for _, l := range w.Landmarks {
		if l.Boundary {
			continue
		}
		out = append(out, Relative(l.Pos, agent.Pos)...)
	}
	return out
}

func squaredDistance(a, b []float64) float64 {
	var total float64
	for i := range a {
		d := a[i] - b[i]
		total += d * d
	}
	return total
}

// boundPenalty discourages agents from leaving the arena along one axis.
func boundPenalty(x float64) float64 {
	switch {
	case x < 0.9:
		return 0
	case x < 1.0:
		return (x - 0.9) * 10
	}
	return math.Min(math.Exp(2*x-2), 10)
}
