// Package spaces describes observation and action spaces of the particle
// environments and derives the flat shape descriptors the adapters cache.
package spaces

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

var ErrUnsupportedSpace = errors.New("unsupported space kind")

// Space is a set of valid observations or actions.
type Space interface {
	fmt.Stringer
	// Sample draws a random element encoded as a flat vector. Discrete
	// spaces encode their sample one-hot.
	Sample(rng *rand.Rand) []float64
}

// Box is a bounded (possibly unbounded) real-valued tensor space.
type Box struct {
	Low   []float64
	High  []float64
	Shape []int
}

// NewBox returns a box with the same bounds on every component.
func NewBox(low, high float64, shape ...int) *Box {
	if len(shape) == 0 {
		shape = []int{1}
	}
	size := 1
	for _, d := range shape {
		size *= d
	}
	b := &Box{
		Low:   make([]float64, size),
		High:  make([]float64, size),
		Shape: append([]int(nil), shape...),
	}
	for i := 0; i < size; i++ {
		b.Low[i] = low
		b.High[i] = high
	}
	return b
}

// Size is the number of scalar components.
func (b *Box) Size() int {
	return len(b.Low)
}

// dims is the box shape, or a flat vector over Low when Shape is unset.
func (b *Box) dims() []int {
	if len(b.Shape) == 0 {
		return []int{len(b.Low)}
	}
	return append([]int(nil), b.Shape...)
}

func (b *Box) Contains(x []float64) bool {
	if len(x) != len(b.Low) {
		return false
	}
	for i, v := range x {
		if v < b.Low[i] || v > b.High[i] {
			return false
		}
	}
	return true
}

// Clip bounds every component of x into the box in place and returns x.
func (b *Box) Clip(x []float64) []float64 {
	for i := range x {
		x[i] = math.Max(b.Low[i], math.Min(b.High[i], x[i]))
	}
	return x
}

func (b *Box) Sample(rng *rand.Rand) []float64 {
	out := make([]float64, len(b.Low))
	for i := range out {
		low, high := b.Low[i], b.High[i]
		switch {
		case math.IsInf(low, -1) && math.IsInf(high, 1):
			out[i] = rng.NormFloat64()
		case math.IsInf(low, -1):
			out[i] = high - rng.ExpFloat64()
		case math.IsInf(high, 1):
			out[i] = low + rng.ExpFloat64()
		default:
			out[i] = low + rng.Float64()*(high-low)
		}
	}
	return out
}

func (b *Box) String() string {
	low, high := "mixed", "mixed"
	if uniform(b.Low) {
		low = formatBound(b.Low[0])
	}
	if uniform(b.High) {
		high = formatBound(b.High[0])
	}
	return fmt.Sprintf("Box(%s, %s, %s)", low, high, Shape{Dims: b.dims()}.tuple())
}

// Discrete is the set {0, 1, ..., N-1}.
type Discrete struct {
	N int
}

func NewDiscrete(n int) *Discrete {
	return &Discrete{N: n}
}

func (d *Discrete) Contains(i int) bool {
	return i >= 0 && i < d.N
}

func (d *Discrete) Sample(rng *rand.Rand) []float64 {
	out := make([]float64, d.N)
	out[rng.Intn(d.N)] = 1
	return out
}

func (d *Discrete) String() string {
	return fmt.Sprintf("Discrete(%d)", d.N)
}

// MultiDiscrete is a product of integer ranges [Low[i], High[i]].
type MultiDiscrete struct {
	Low  []int
	High []int
}

// NewMultiDiscrete builds the space from inclusive [low, high] pairs.
func NewMultiDiscrete(bounds ...[2]int) *MultiDiscrete {
	m := &MultiDiscrete{
		Low:  make([]int, len(bounds)),
		High: make([]int, len(bounds)),
	}
	for i, b := range bounds {
		m.Low[i] = b[0]
		m.High[i] = b[1]
	}
	return m
}

// Sizes is the number of categories per dimension.
func (m *MultiDiscrete) Sizes() []int {
	sizes := make([]int, len(m.Low))
	for i := range m.Low {
		sizes[i] = m.High[i] - m.Low[i] + 1
	}
	return sizes
}

func (m *MultiDiscrete) Sample(rng *rand.Rand) []float64 {
	var out []float64
	for _, n := range m.Sizes() {
		chunk := make([]float64, n)
		chunk[rng.Intn(n)] = 1
		out = append(out, chunk...)
	}
	return out
}

func (m *MultiDiscrete) String() string {
	parts := make([]string, len(m.Low))
	for i := range m.Low {
		parts[i] = fmt.Sprintf("[%d, %d]", m.Low[i], m.High[i])
	}
	return "MultiDiscrete(" + strings.Join(parts, ", ") + ")"
}

func uniform(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
