package worker

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const defaultLogStd = -1.0

// AgentWeights is a linear policy head and value head for one agent.
type AgentWeights struct {
	W      [][]float64 `json:"w"`  // shape: [act][obs]
	B      []float64   `json:"b"`  // shape: [act]
	VW     []float64   `json:"vw"` // shape: [obs]
	VB     float64     `json:"vb"`
	LogStd float64     `json:"log_std"`
}

type PolicyWeights struct {
	Agents []AgentWeights `json:"agents"`
}

// Policy samples one action vector per agent: a one-hot category in
// discrete mode, a Gaussian around tanh(Wx+b) clipped to [-1, 1] otherwise.
type Policy struct {
	Weights    PolicyWeights
	Continuous bool
}

func DefaultWeights(obsDims, actDims []int) PolicyWeights {
	weights := PolicyWeights{Agents: make([]AgentWeights, len(obsDims))}
	for a := range obsDims {
		w := AgentWeights{
			W:      make([][]float64, actDims[a]),
			B:      make([]float64, actDims[a]),
			VW:     make([]float64, obsDims[a]),
			LogStd: defaultLogStd,
		}
		for i := range w.W {
			w.W[i] = make([]float64, obsDims[a])
			sign := 1.0
			if i%2 == 1 {
				sign = -1.0
			}
			for j := range w.W[i] {
				w.W[i][j] = sign * 0.01
			}
		}
		weights.Agents[a] = w
	}
	return weights
}

// Check reports whether the weights fit agents with the given dimensions.
func (pw PolicyWeights) Check(obsDims, actDims []int) error {
	if len(pw.Agents) != len(obsDims) {
		return fmt.Errorf("weights for %d agents, env has %d", len(pw.Agents), len(obsDims))
	}
	for a, w := range pw.Agents {
		if len(w.W) != actDims[a] || len(w.B) != actDims[a] || len(w.VW) != obsDims[a] {
			return fmt.Errorf("agent %d: weights do not match obs=%d act=%d", a, obsDims[a], actDims[a])
		}
		for _, row := range w.W {
			if len(row) != obsDims[a] {
				return fmt.Errorf("agent %d: weight row has %d columns, want %d", a, len(row), obsDims[a])
			}
		}
	}
	return nil
}

func NewPolicy(weights PolicyWeights, continuous bool) *Policy {
	return &Policy{
		Weights:    weights,
		Continuous: continuous,
	}
}

// Act returns per-agent actions, log-probabilities, and value estimates.
func (p *Policy) Act(obs [][]float64, rng *rand.Rand) ([][]float64, []float64, []float64) {
	actions := make([][]float64, len(obs))
	logProbs := make([]float64, len(obs))
	values := make([]float64, len(obs))
	for a, o := range obs {
		w := p.Weights.Agents[a]
		logits := make([]float64, len(w.B))
		for i := range logits {
			logits[i] = w.B[i] + floats.Dot(w.W[i], o)
		}
		if p.Continuous {
			actions[a], logProbs[a] = gaussianAction(logits, w.LogStd, rng)
		} else {
			actions[a], logProbs[a] = categoricalAction(logits, rng)
		}
		values[a] = w.VB + floats.Dot(w.VW, o)
	}
	return actions, logProbs, values
}

func categoricalAction(logits []float64, rng *rand.Rand) ([]float64, float64) {
	probs := softmax(logits)
	choice := sampleCategorical(probs, rng)
	action := make([]float64, len(probs))
	action[choice] = 1
	return action, math.Log(probs[choice] + 1e-8)
}

func gaussianAction(logits []float64, logStd float64, rng *rand.Rand) ([]float64, float64) {
	std := math.Exp(logStd)
	action := make([]float64, len(logits))
	var logProb float64
	for i, l := range logits {
		noise := rng.NormFloat64()
		action[i] = math.Max(-1, math.Min(1, math.Tanh(l)+std*noise))
		logProb += -0.5*noise*noise - logStd - 0.5*math.Log(2*math.Pi)
	}
	return action, logProb
}

func softmax(logits []float64) []float64 {
	maxLogit := floats.Max(logits)
	values := make([]float64, len(logits))
	for i, v := range logits {
		values[i] = math.Exp(v - maxLogit)
	}
	floats.Scale(1/floats.Sum(values), values)
	return values
}

func sampleCategorical(probs []float64, rng *rand.Rand) int {
	threshold := rng.Float64()
	var cumulativeProb float64
	for i, prob := range probs {
		cumulativeProb += prob
		if threshold <= cumulativeProb {
			return i
		}
	}
	return len(probs) - 1
}
