package particle

import (
	"fmt"
	"math/rand"
)

var landmarkPalette = [][]float64{
	{0.65, 0.15, 0.15},
	{0.15, 0.65, 0.15},
	{0.15, 0.15, 0.65},
}

// speakerListener: a static speaker sees the goal colour and must describe it
// to a mute listener that moves.
type speakerListener struct{}

func (speakerListener) Name() string { return "simple_speaker_listener" }

func (speakerListener) MakeWorld() *World {
	w := NewWorld(3)
	w.Collaborative = true
	speaker := NewAgent("speaker_0")
	speaker.Movable = false
	speaker.Speaker = true
	listener := NewAgent("listener_0")
	listener.Silent = true
	for _, a := range []*Agent{speaker, listener} {
		a.Collide = false
		a.Size = 0.075
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < 3; i++ {
		l := NewLandmark(fmt.Sprintf("landmark_%d", i))
		l.Collide = false
		l.Size = 0.04
		w.Landmarks = append(w.Landmarks, l)
	}
	return w
}

func (speakerListener) ResetWorld(w *World, rng *rand.Rand) {
	speaker, listener := w.Agents[0], w.Agents[1]
	goal := w.Landmarks[rng.Intn(len(w.Landmarks))]
	speaker.GoalA = &listener.Entity
	speaker.GoalB = &goal.Entity
	listener.GoalA, listener.GoalB = nil, nil
	for _, a := range w.Agents {
		a.Color = color(0.25, 0.25, 0.25)
	}
	for i, l := range w.Landmarks {
		l.Color = append([]float64(nil), landmarkPalette[i%len(landmarkPalette)]...)
	}
	listener.Color = concat(goal.Color)
	for i := range listener.Color {
		listener.Color[i] += 0.45
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

func (speakerListener) Reward(_ *Agent, w *World) float64 {
	speaker := w.Agents[0]
	return -squaredDistance(speaker.GoalA.Pos, speaker.GoalB.Pos)
}

func (speakerListener) Observation(agent *Agent, w *World) []float64 {
	goalColor := make([]float64, w.DimColor)
	if agent.GoalB != nil {
		copy(goalColor, agent.GoalB.Color)
	}
	if !agent.Movable {
		return goalColor
	}
	var comm []float64
	for _, other := range w.Agents {
		if other == agent || other.Comm == nil {
			continue
		}
		comm = append(comm, other.Comm...)
	}
	return concat(agent.Vel, landmarkOffsets(agent, w), comm)
}

// reference: two agents each know where the other should go and must tell
// each other over a ten-symbol channel.
type reference struct{}

func (reference) Name() string { return "simple_reference" }

func (reference) MakeWorld() *World {
	w := NewWorld(10)
	w.Collaborative = true
	for i := 0; i < 2; i++ {
		a := NewAgent(fmt.Sprintf("agent_%d", i))
		a.Collide = false
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < 3; i++ {
		l := NewLandmark(fmt.Sprintf("landmark_%d", i))
		l.Collide = false
		w.Landmarks = append(w.Landmarks, l)
	}
	return w
}

func (reference) ResetWorld(w *World, rng *rand.Rand) {
	first, second := w.Agents[0], w.Agents[1]
	first.GoalA = &second.Entity
	first.GoalB = &w.Landmarks[rng.Intn(len(w.Landmarks))].Entity
	second.GoalA = &first.Entity
	second.GoalB = &w.Landmarks[rng.Intn(len(w.Landmarks))].Entity
	for _, a := range w.Agents {
		a.Color = color(0.25, 0.25, 0.25)
	}
	for i, l := range w.Landmarks {
		l.Color = append([]float64(nil), landmarkPalette[i%len(landmarkPalette)]...)
	}
	first.GoalA.Color = concat(first.GoalB.Color)
	second.GoalA.Color = concat(second.GoalB.Color)
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

func (reference) Reward(agent *Agent, _ *World) float64 {
	if agent.GoalA == nil || agent.GoalB == nil {
		return 0
	}
	return -squaredDistance(agent.GoalA.Pos, agent.GoalB.Pos)
}

func (reference) Observation(agent *Agent, w *World) []float64 {
	goalColor := make([]float64, w.DimColor)
	if agent.GoalB != nil {
		copy(goalColor, agent.GoalB.Color)
	}
	var comm []float64
	for _, other := range w.Agents {
		if other == agent {
			continue
		}
		comm = append(comm, other.Comm...)
	}
	return concat(agent.Vel, landmarkOffsets(agent, w), goalColor, comm)
}

// crypto: a speaker encrypts the goal colour with a shared key for a listener
// while an eavesdropper tries to decode it without the key.
type crypto struct{}

func (crypto) Name() string { return "simple_crypto" }

func (crypto) MakeWorld() *World {
	w := NewWorld(4)
	eve := NewAgent("eve_0")
	eve.Adversary = true
	bob := NewAgent("bob_0")
	alice := NewAgent("alice_0")
	alice.Speaker = true
	for _, a := range []*Agent{eve, bob, alice} {
		a.Collide = false
		a.Movable = false
		w.Agents = append(w.Agents, a)
	}
	for i := 0; i < 2; i++ {
		l := NewLandmark(fmt.Sprintf("landmark_%d", i))
		l.Collide = false
		w.Landmarks = append(w.Landmarks, l)
	}
	return w
}

// ResetWorld colours landmarks with one-hot codes over the communication
// alphabet so that a goal colour is directly a message.
func (crypto) ResetWorld(w *World, rng *rand.Rand) {
	for _, a := range w.Agents {
		a.Color = color(0.25, 0.25, 0.25)
		if a.Adversary {
			a.Color = color(0.75, 0.25, 0.25)
		}
		a.Key = nil
	}
	for i, l := range w.Landmarks {
		l.Color = make([]float64, w.DimC)
		l.Color[i%w.DimC] = 1
	}
	goal := w.Landmarks[rng.Intn(len(w.Landmarks))]
	w.Agents[1].Color = concat(goal.Color)
	w.Agents[2].Key = concat(w.Landmarks[rng.Intn(len(w.Landmarks))].Color)
	for _, a := range w.Agents {
		a.GoalA = &goal.Entity
	}
	placeAgents(w, rng, -1, 1)
	placeLandmarks(w.Landmarks, w, rng, -1, 1)
}

func (crypto) Reward(agent *Agent, w *World) float64 {
	if agent.Adversary {
		if silent(agent.Comm) {
			return 0
		}
		return -squaredDistance(agent.Comm, agent.GoalA.Color)
	}
	var goodRew, advRew float64
	for _, a := range w.Agents {
		if silent(a.Comm) || a.Speaker {
			continue
		}
		if a.Adversary {
			advRew += squaredDistance(a.Comm, agent.GoalA.Color)
		} else {
			goodRew -= squaredDistance(a.Comm, agent.GoalA.Color)
		}
	}
	return advRew + goodRew
}

func (crypto) Observation(agent *Agent, w *World) []float64 {
	goalColor := concat(agent.GoalA.Color)
	key := w.Agents[2].Key
	if key == nil {
		key = make([]float64, w.DimC)
		goalColor = make([]float64, w.DimC)
	}
	var comm []float64
	for _, other := range w.Agents {
		if other == agent || other.Comm == nil || !other.Speaker {
			continue
		}
		comm = append(comm, other.Comm...)
	}
	switch {
	case agent.Speaker:
		return concat(goalColor, key)
	case agent.Adversary:
		return concat(comm)
	default:
		return concat(key, comm)
	}
}

func silent(comm []float64) bool {
	for _, v := range comm {
		if v != 0 {
			return false
		}
	}
	return true
}
