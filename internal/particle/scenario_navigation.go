package particle

import (
	"fmt"
	"math"
	"math/rand"
)

// simple: one agent reaches one landmark.
type simple struct{}

func (simple) Name() string { return "simple" }

func (simple) MakeWorld() *World {
	w := NewWorld(0)
	agent := NewAgent("agent_0")
	agent.Collide = false
	agent.Silent = true
	landmark := NewLandmark("landmark_0")
	landmark.Collide = false
	w.Agents = []*Agent{agent}
	w.Landmarks = []*Landmark{landmark}
	return w
}

func (simple) ResetWorld(w *World, rng *rand.Rand) {
	for _, a := range w.Agents {
		a.Color = color(0.25, 0.25, 0.25)
	}
	for _, l := range w.Landmarks {
		l.Color = color(0.75, 0.25, 0.25)
	}
	w.Landmarks[0].Color = color(0.25, 0.25, 0.75)
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

func (simple) Reward(agent *Agent, w *World) float64 {
	return -squaredDistance(agent.Pos, w.Landmarks[0].Pos)
}

func (simple) Observation(agent *Agent, w *World) []float64 {
	return concat(agent.Vel, landmarkOffsets(agent, w))
}

// adversary: good agents know which landmark is the goal and try to cover
// it while hiding it from one adversary who must infer it.
type adversary struct {
	n int
}

func newAdversary(cfg Config) Scenario {
	return adversary{n: orDefault(cfg.N, 2)}
}

func (adversary) Name() string { return "simple_adversary" }

func (s adversary) MakeWorld() *World {
	w := NewWorld(2)
	const numAdversaries = 1
	for i := 0; i < s.n+numAdversaries; i++ {
		var agent *Agent
		if i < numAdversaries {
			agent = NewAgent(fmt.Sprintf("adversary_%d", i))
			agent.Adversary = true
		} else {
			agent = NewAgent(fmt.Sprintf("agent_%d", i-numAdversaries))
		}
		agent.Collide = false
		agent.Silent = true
		agent.Size = 0.15
		w.Agents = append(w.Agents, agent)
	}
	for i := 0; i < s.n; i++ {
		l := NewLandmark(fmt.Sprintf("landmark_%d", i))
		l.Collide = false
		l.Size = 0.08
		w.Landmarks = append(w.Landmarks, l)
	}
	return w
}

func (adversary) ResetWorld(w *World, rng *rand.Rand) {
	for _, a := range w.Agents {
		if a.Adversary {
			a.Color = color(0.85, 0.35, 0.35)
		} else {
			a.Color = color(0.35, 0.35, 0.85)
		}
	}
	for _, l := range w.Landmarks {
		l.Color = color(0.15, 0.15, 0.15)
	}
	goal := w.Landmarks[rng.Intn(len(w.Landmarks))]
	goal.Color = color(0.15, 0.65, 0.15)
	for _, a := range w.Agents {
		a.GoalA = &goal.Entity
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

func (adversary) Reward(agent *Agent, w *World) float64 {
	if agent.Adversary {
		return -Distance(&agent.Entity, agent.GoalA)
	}
	// Reward good agents for how far the adversary is from the goal and for
	// how close the nearest good agent is.
	var advRew float64
	for _, a := range adversaries(w) {
		advRew += Distance(&a.Entity, a.GoalA)
	}
	nearest := math.Inf(1)
	for _, a := range goodAgents(w) {
		nearest = math.Min(nearest, Distance(&a.Entity, a.GoalA))
	}
	return advRew - nearest
}

func (adversary) Observation(agent *Agent, w *World) []float64 {
	var others []float64
	for _, other := range w.Agents {
		if other == agent {
			continue
		}
		others = append(others, Relative(other.Pos, agent.Pos)...)
	}
	entities := landmarkOffsets(agent, w)
	if agent.Adversary {
		return concat(entities, others)
	}
	return concat(Relative(agent.GoalA.Pos, agent.Pos), entities, others)
}

// push: a good agent reaches its goal landmark while an adversary pushes it
// away.
type push struct{}

func (push) Name() string { return "simple_push" }

func (push) MakeWorld() *World {
	w := NewWorld(2)
	adv := NewAgent("adversary_0")
	adv.Adversary = true
	good := NewAgent("agent_0")
	for _, a := range []*Agent{adv, good} {
		a.Silent = true
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < 2; i++ {
		l := NewLandmark(fmt.Sprintf("landmark_%d", i))
		l.Collide = false
		w.Landmarks = append(w.Landmarks, l)
	}
	return w
}

func (push) ResetWorld(w *World, rng *rand.Rand) {
	for i, l := range w.Landmarks {
		l.Color = color(0.1, 0.1, 0.1)
		l.Color[i+1] += 0.8
	}
	goal := w.Landmarks[rng.Intn(len(w.Landmarks))]
	for _, a := range w.Agents {
		a.GoalA = &goal.Entity
		if a.Adversary {
			a.Color = color(0.75, 0.25, 0.25)
		} else {
			a.Color = append([]float64(nil), goal.Color...)
			a.Color[0] += 0.15
		}
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

func (push) Reward(agent *Agent, w *World) float64 {
	if !agent.Adversary {
		return -Distance(&agent.Entity, agent.GoalA)
	}
	nearest := math.Inf(1)
	for _, a := range goodAgents(w) {
		nearest = math.Min(nearest, Distance(&a.Entity, a.GoalA))
	}
	return nearest - Distance(&agent.Entity, agent.GoalA)
}

func (push) Observation(agent *Agent, w *World) []float64 {
	var colors, others []float64
	for _, l := range w.Landmarks {
		colors = append(colors, l.Color...)
	}
	for _, other := range w.Agents {
		if other == agent {
			continue
		}
		others = append(others, Relative(other.Pos, agent.Pos)...)
	}
	entities := landmarkOffsets(agent, w)
	if agent.Adversary {
		return concat(agent.Vel, entities, others)
	}
	return concat(agent.Vel, Relative(agent.GoalA.Pos, agent.Pos), agent.GoalA.Color, entities, colors, others)
}

// spread: N agents cover N landmarks without colliding.
type spread struct {
	n int
}

func newSpread(cfg Config) Scenario {
	return spread{n: orDefault(cfg.N, 3)}
}

func (spread) Name() string { return "simple_spread" }

func (s spread) MakeWorld() *World {
	w := NewWorld(2)
	w.Collaborative = true
	for i := 0; i < s.n; i++ {
		a := NewAgent(fmt.Sprintf("agent_%d", i))
		a.Silent = true
		a.Size = 0.15
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < s.n; i++ {
		l := NewLandmark(fmt.Sprintf("landmark_%d", i))
		l.Collide = false
		w.Landmarks = append(w.Landmarks, l)
	}
	return w
}

func (spread) ResetWorld(w *World, rng *rand.Rand) {
	for _, a := range w.Agents {
		a.Color = color(0.35, 0.35, 0.85)
	}
	for _, l := range w.Landmarks {
		l.Color = color(0.25, 0.25, 0.25)
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

// Reward is the local collision penalty: -1 for every other agent in
// contact. The agent itself is not counted, so an agent touching nobody
// scores 0 rather than a constant -1.
func (spread) Reward(agent *Agent, w *World) float64 {
	var rew float64
	if !agent.Collide {
		return rew
	}
	for _, other := range w.Agents {
		if other != agent && IsCollision(&other.Entity, &agent.Entity) {
			rew--
		}
	}
	return rew
}

// GlobalReward penalises the distance from each landmark to its nearest agent.
func (spread) GlobalReward(w *World) float64 {
	var rew float64
	for _, l := range w.Landmarks {
		nearest := math.Inf(1)
		for _, a := range w.Agents {
			nearest = math.Min(nearest, Distance(&a.Entity, &l.Entity))
		}
		rew -= nearest
	}
	return rew
}

func (spread) Observation(agent *Agent, w *World) []float64 {
	var others, comm []float64
	for _, other := range w.Agents {
		if other == agent {
			continue
		}
		comm = append(comm, other.Comm...)
		others = append(others, Relative(other.Pos, agent.Pos)...)
	}
	return concat(agent.Vel, agent.Pos, landmarkOffsets(agent, w), others, comm)
}
