package particle

import (
	"fmt"
	"math"
	"math/rand"
)

// tag: slower adversaries chase faster good agents around obstacles.
type tag struct {
	numGood, numAdversaries, numObstacles int
}

func newTag(cfg Config) Scenario {
	return tag{
		numGood:        orDefault(cfg.NumGood, 1),
		numAdversaries: orDefault(cfg.NumAdversaries, 3),
		numObstacles:   orDefault(cfg.NumObstacles, 2),
	}
}

func (tag) Name() string { return "simple_tag" }

func (s tag) MakeWorld() *World {
	w := NewWorld(2)
	for i := 0; i < s.numAdversaries+s.numGood; i++ {
		var a *Agent
		if i < s.numAdversaries {
			a = NewAgent(fmt.Sprintf("adversary_%d", i))
			a.Adversary = true
		} else {
			a = NewAgent(fmt.Sprintf("agent_%d", i-s.numAdversaries))
		}
		a.Silent = true
		chaserOrPrey(a)
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < s.numObstacles; i++ {
		w.Landmarks = append(w.Landmarks, obstacle(fmt.Sprintf("landmark_%d", i)))
	}
	return w
}

func chaserOrPrey(a *Agent) {
	if a.Adversary {
		a.Size, a.Accel, a.MaxSpeed = 0.075, 3.0, 1.0
		return
	}
	a.Size, a.Accel, a.MaxSpeed = 0.05, 4.0, 1.3
}

func obstacle(name string) *Landmark {
	l := NewLandmark(name)
	l.Size = 0.2
	return l
}

func (tag) ResetWorld(w *World, rng *rand.Rand) {
	for _, a := range w.Agents {
		if a.Adversary {
			a.Color = color(0.85, 0.35, 0.35)
		} else {
			a.Color = color(0.35, 0.85, 0.35)
		}
	}
	for _, l := range w.Landmarks {
		l.Color = color(0.25, 0.25, 0.25)
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -0.9, 0.9)
}

func (tag) Reward(agent *Agent, w *World) float64 {
	if agent.Adversary {
		return tagBonus(w, 10)
	}
	var rew float64
	if agent.Collide {
		for _, adv := range adversaries(w) {
			if IsCollision(&adv.Entity, &agent.Entity) {
				rew -= 10
			}
		}
	}
	for _, x := range agent.Pos {
		rew -= boundPenalty(math.Abs(x))
	}
	return rew
}

// tagBonus pays adversaries for every good/adversary contact.
func tagBonus(w *World, bonus float64) float64 {
	var rew float64
	for _, good := range goodAgents(w) {
		for _, adv := range adversaries(w) {
			if adv.Collide && IsCollision(&good.Entity, &adv.Entity) {
				rew += bonus
			}
		}
	}
	return rew
}

func (tag) Observation(agent *Agent, w *World) []float64 {
	var others, otherVel []float64
	for _, other := range w.Agents {
		if other == agent {
			continue
		}
		others = append(others, Relative(other.Pos, agent.Pos)...)
		if !other.Adversary {
			otherVel = append(otherVel, other.Vel...)
		}
	}
	return concat(agent.Vel, agent.Pos, landmarkOffsets(agent, w), others, otherVel)
}

// worldComm: tag with food, forests that hide agents, and a leader adversary
// who sees everything and directs the others over a shared channel.
type worldComm struct {
	numGood, numAdversaries, numObstacles, numFood, numForests int
}

func newWorldComm(cfg Config) Scenario {
	return worldComm{
		numGood:        orDefault(cfg.NumGood, 2),
		numAdversaries: orDefault(cfg.NumAdversaries, 4),
		numObstacles:   orDefault(cfg.NumObstacles, 1),
		numFood:        orDefault(cfg.NumFood, 2),
		numForests:     orDefault(cfg.NumForests, 2),
	}
}

func (worldComm) Name() string { return "simple_world_comm" }

func (s worldComm) MakeWorld() *World {
	w := NewWorld(4)
	for i := 0; i < s.numAdversaries+s.numGood; i++ {
		var a *Agent
		switch {
		case i == 0:
			a = NewAgent("leadadversary_0")
			a.Adversary = true
			a.Leader = true
		case i < s.numAdversaries:
			a = NewAgent(fmt.Sprintf("adversary_%d", i-1))
			a.Adversary = true
		default:
			a = NewAgent(fmt.Sprintf("agent_%d", i-s.numAdversaries))
		}
		a.Silent = !a.Leader
		chaserOrPrey(a)
		if !a.Adversary {
			a.Size = 0.045
		}
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < s.numObstacles; i++ {
		w.Landmarks = append(w.Landmarks, obstacle(fmt.Sprintf("landmark_%d", i)))
	}
	for i := 0; i < s.numFood; i++ {
		f := NewLandmark(fmt.Sprintf("food_%d", i))
		f.Collide = false
		f.Size = 0.03
		w.Food = append(w.Food, f)
	}
	for i := 0; i < s.numForests; i++ {
		f := NewLandmark(fmt.Sprintf("forest_%d", i))
		f.Collide = false
		f.Size = 0.3
		w.Forests = append(w.Forests, f)
	}
	w.Landmarks = append(w.Landmarks, w.Food...)
	w.Landmarks = append(w.Landmarks, w.Forests...)
	return w
}

func (worldComm) ResetWorld(w *World, rng *rand.Rand) {
	for _, a := range w.Agents {
		switch {
		case a.Leader:
			a.Color = color(0.95, 0.45, 0.45)
		case a.Adversary:
			a.Color = color(0.85, 0.35, 0.35)
		default:
			a.Color = color(0.45, 0.45, 0.95)
		}
	}
	for _, l := range w.Landmarks {
		l.Color = color(0.25, 0.25, 0.25)
	}
	for _, f := range w.Food {
		f.Color = color(0.15, 0.15, 0.65)
	}
	for _, f := range w.Forests {
		f.Color = color(0.6, 0.9, 0.6)
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -0.9, 0.9)
}

func (worldComm) Reward(agent *Agent, w *World) float64 {
	if agent.Adversary {
		nearest := math.Inf(1)
		for _, good := range goodAgents(w) {
			nearest = math.Min(nearest, Distance(&good.Entity, &agent.Entity))
		}
		return tagBonus(w, 5) - 0.1*nearest
	}
	var rew float64
	if agent.Collide {
		for _, adv := range adversaries(w) {
			if IsCollision(&adv.Entity, &agent.Entity) {
				rew -= 5
			}
		}
	}
	for _, x := range agent.Pos {
		rew -= boundPenalty(math.Abs(x))
	}
	nearestFood := math.Inf(1)
	for _, food := range w.Food {
		if IsCollision(&agent.Entity, &food.Entity) {
			rew += 2
		}
		nearestFood = math.Min(nearestFood, Distance(&food.Entity, &agent.Entity))
	}
	if len(w.Food) > 0 {
		rew -= 0.05 * nearestFood
	}
	return rew
}

func (worldComm) Observation(agent *Agent, w *World) []float64 {
	inForest := forestFlags(&agent.Entity, w)
	var others, otherVel, forestObs []float64
	for _, other := range w.Agents {
		if other == agent {
			continue
		}
		if agent.Leader || visible(inForest, forestFlags(&other.Entity, w)) {
			others = append(others, Relative(other.Pos, agent.Pos)...)
			if !other.Adversary {
				otherVel = append(otherVel, other.Vel...)
			}
			continue
		}
		others = append(others, make([]float64, w.DimP)...)
		if !other.Adversary {
			otherVel = append(otherVel, make([]float64, w.DimP)...)
		}
	}
	for _, in := range inForest {
		if in {
			forestObs = append(forestObs, 1)
		} else {
			forestObs = append(forestObs, -1)
		}
	}
	entities := landmarkOffsets(agent, w)
	if agent.Adversary {
		return concat(agent.Vel, agent.Pos, entities, others, otherVel, forestObs, w.Agents[0].Comm)
	}
	return concat(agent.Vel, agent.Pos, entities, others, forestObs, otherVel)
}

func forestFlags(e *Entity, w *World) []bool {
	flags := make([]bool, len(w.Forests))
	for i, f := range w.Forests {
		flags[i] = IsCollision(e, &f.Entity)
	}
	return flags
}

// visible reports whether two agents can see each other: both outside every
// forest, or sharing one.
func visible(a, b []bool) bool {
	anyA, anyB := false, false
	for i := range a {
		if a[i] && b[i] {
			return true
		}
		anyA = anyA || a[i]
		anyB = anyB || b[i]
	}
	return !anyA && !anyB
}
