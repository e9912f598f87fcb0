package spaces

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape is the flat size descriptor of a space. Rank-1 boxes, discrete and
// multi-discrete spaces collapse to a single dimension; higher-rank boxes
// keep their full shape.
type Shape struct {
	Dims []int
}

// Scalar reports the single dimension when the shape has rank 1.
func (s Shape) Scalar() (int, bool) {
	if len(s.Dims) != 1 {
		return 0, false
	}
	return s.Dims[0], true
}

// Size is the product of all dimensions.
func (s Shape) Size() int {
	size := 1
	for _, d := range s.Dims {
		size *= d
	}
	return size
}

func (s Shape) String() string {
	if n, ok := s.Scalar(); ok {
		return strconv.Itoa(n)
	}
	return s.tuple()
}

func (s Shape) tuple() string {
	parts := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		parts[i] = strconv.Itoa(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ShapeOf derives the shape descriptor of a space.
func ShapeOf(space Space) (Shape, error) {
	switch s := space.(type) {
	case *Box:
		return Shape{Dims: s.dims()}, nil
	case *Discrete:
		return Shape{Dims: []int{s.N}}, nil
	case *MultiDiscrete:
		total := 0
		for _, n := range s.Sizes() {
			total += n
		}
		return Shape{Dims: []int{total}}, nil
	default:
		return Shape{}, fmt.Errorf("%w: shape is %v, not Box or Discrete or MultiDiscrete", ErrUnsupportedSpace, space)
	}
}

// ShapesOf derives shapes for a list of spaces.
func ShapesOf(list []Space) ([]Shape, error) {
	shapes := make([]Shape, len(list))
	for i, space := range list {
		shape, err := ShapeOf(space)
		if err != nil {
			return nil, err
		}
		shapes[i] = shape
	}
	return shapes, nil
}
