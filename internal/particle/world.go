// Package particle implements the two-dimensional particle world shared by the
// multi-agent environments: point-mass entities, soft contact forces,
// damped integration and agent communication channels.
package particle

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	dimP          = 2
	dimColor      = 3
	dt            = 0.1
	damping       = 0.25
	contactForce  = 1e2
	contactMargin = 1e-3

	defaultSize = 0.05
	defaultMass = 1.0

	// Sensitivity scales movement actions of agents without an explicit
	// acceleration.
	Sensitivity = 5.0
)

// Entity is anything with a physical presence in the world.
type Entity struct {
	Name     string
	Size     float64
	Movable  bool
	Collide  bool
	Color    []float64
	MaxSpeed float64 // zero means unbounded
	Accel    float64 // zero means Sensitivity
	Mass     float64
	Boundary bool

	Pos []float64
	Vel []float64
}

// Landmark is a static (or at least unactuated) entity.
type Landmark struct {
	Entity
}

// Action is the physical and communication action of an agent for one tick.
type Action struct {
	U []float64
	C []float64
}

type Agent struct {
	Entity

	Silent bool
	UNoise float64
	CNoise float64

	// Comm is the utterance currently broadcast by the agent.
	Comm   []float64
	Action Action

	Adversary bool
	Leader    bool
	Speaker   bool

	GoalA *Entity
	GoalB *Entity
	Key   []float64
}

// World holds entities and advances the physics.
type World struct {
	Agents    []*Agent
	Landmarks []*Landmark
	// Food and Forests are subsets of Landmarks used by the world-comm
	// scenario.
	Food    []*Landmark
	Forests []*Landmark

	DimC     int
	DimP     int
	DimColor int

	DT            float64
	Damping       float64
	ContactForce  float64
	ContactMargin float64

	// Collaborative worlds share one reward across all agents.
	Collaborative bool

	Rand *rand.Rand
}

func NewWorld(dimC int) *World {
	return &World{
		DimC:          dimC,
		DimP:          dimP,
		DimColor:      dimColor,
		DT:            dt,
		Damping:       damping,
		ContactForce:  contactForce,
		ContactMargin: contactMargin,
		Rand:          rand.New(rand.NewSource(rand.Int63())),
	}
}

func NewAgent(name string) *Agent {
	return &Agent{
		Entity: Entity{
			Name:    name,
			Size:    defaultSize,
			Movable: true,
			Collide: true,
			Mass:    defaultMass,
		},
	}
}

func NewLandmark(name string) *Landmark {
	return &Landmark{Entity: Entity{
		Name:    name,
		Size:    defaultSize,
		Collide: true,
		Mass:    defaultMass,
	}}
}

// Entities lists agents followed by landmarks.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.Agents)+len(w.Landmarks))
	for _, a := range w.Agents {
		out = append(out, &a.Entity)
	}
	for _, l := range w.Landmarks {
		out = append(out, &l.Entity)
	}
	return out
}

// Step advances the world by one tick using the actions currently set on
// the agents.
func (w *World) Step() {
	entities := w.Entities()
	force := make([][]float64, len(entities))
	w.applyActionForce(force)
	w.applyEnvironmentForce(entities, force)
	w.integrateState(entities, force)
	for _, agent := range w.Agents {
		w.updateAgentState(agent)
	}
}

func (w *World) applyActionForce(force [][]float64) {
	for i, agent := range w.Agents {
		if !agent.Movable || agent.Action.U == nil {
			continue
		}
		f := append([]float64(nil), agent.Action.U...)
		if agent.UNoise > 0 {
			for j := range f {
				f[j] += w.Rand.NormFloat64() * agent.UNoise
			}
		}
		force[i] = f
	}
}

func (w *World) applyEnvironmentForce(entities []*Entity, force [][]float64) {
	for a := range entities {
		for b := a + 1; b < len(entities); b++ {
			fa, fb := w.collisionForce(entities[a], entities[b])
			force[a] = accumulate(force[a], fa)
			force[b] = accumulate(force[b], fb)
		}
	}
}

func accumulate(total, f []float64) []float64 {
	if f == nil {
		return total
	}
	if total == nil {
		return f
	}
	floats.Add(total, f)
	return total
}

func (w *World) integrateState(entities []*Entity, force [][]float64) {
	for i, e := range entities {
		if !e.Movable {
			continue
		}
		floats.Scale(1-w.Damping, e.Vel)
		if force[i] != nil {
			floats.AddScaled(e.Vel, w.DT/e.Mass, force[i])
		}
		if e.MaxSpeed > 0 {
			speed := floats.Norm(e.Vel, 2)
			if speed > e.MaxSpeed {
				floats.Scale(e.MaxSpeed/speed, e.Vel)
			}
		}
		floats.AddScaled(e.Pos, w.DT, e.Vel)
	}
}

func (w *World) updateAgentState(agent *Agent) {
	if agent.Silent || agent.Action.C == nil {
		agent.Comm = make([]float64, w.DimC)
		return
	}
	comm := append([]float64(nil), agent.Action.C...)
	if agent.CNoise > 0 {
		for j := range comm {
			comm[j] += w.Rand.NormFloat64() * agent.CNoise
		}
	}
	agent.Comm = comm
}

// collisionForce returns the soft contact force on a and on b, nil for an
// entity that receives none.
func (w *World) collisionForce(a, b *Entity) ([]float64, []float64) {
	if !a.Collide || !b.Collide || a == b {
		return nil, nil
	}
	delta := floats.SubTo(make([]float64, len(a.Pos)), a.Pos, b.Pos)
	dist := floats.Norm(delta, 2)
	if dist == 0 {
		return nil, nil
	}
	distMin := a.Size + b.Size
	k := w.ContactMargin
	penetration := logAddExp0(-(dist-distMin)/k) * k
	floats.Scale(w.ContactForce*penetration/dist, delta)

	var fa, fb []float64
	if a.Movable {
		fa = append([]float64(nil), delta...)
	}
	if b.Movable {
		fb = make([]float64, len(delta))
		floats.ScaleTo(fb, -1, delta)
	}
	return fa, fb
}

// logAddExp0 is log(1 + exp(x)) without overflow.
func logAddExp0(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// Distance between the centres of two entities.
func Distance(a, b *Entity) float64 {
	return floats.Distance(a.Pos, b.Pos, 2)
}

// IsCollision reports whether two entities overlap.
func IsCollision(a, b *Entity) bool {
	return Distance(a, b) < a.Size+b.Size
}

// Relative returns target - origin as a new slice.
func Relative(target, origin []float64) []float64 {
	return floats.SubTo(make([]float64, len(target)), target, origin)
}
