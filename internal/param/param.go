package param

import (
	"github.com/pkg/errors"
)

// Parameter is a named, mutable numeric tensor with a fixed shape.
//
// The model owns its parameters; the optimizer mutates them in place and
// keeps no independent copy beyond transient snapshots (best-so-far,
// velocity buffers). Shape and element count are immutable for the lifetime
// of the parameter within a training run.
//
// Storage is a flat row-major float64 slice.
type Parameter struct {
	name  string
	shape []int
	data  []float64
}

// New creates a parameter with the given name, shape and initial values.
//
// Returns an error if the number of values does not match the shape's
// element count, or if the shape has a non-positive dimension.
func New(name string, shape []int, values []float64) (*Parameter, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, errors.Errorf("param: %s has non-positive dimension in shape %v", name, shape)
		}
		n *= d
	}
	if len(values) != n {
		return nil, errors.Errorf("param: %s shape %v requires %d elements, got %d", name, shape, n, len(values))
	}
	data := make([]float64, n)
	copy(data, values)
	return &Parameter{
		name:  name,
		shape: append([]int(nil), shape...),
		data:  data,
	}, nil
}

// MustNew is like New but panics on error. Intended for model construction
// with statically known shapes.
func MustNew(name string, shape []int, values []float64) *Parameter {
	p, err := New(name, shape, values)
	if err != nil {
		panic(err)
	}
	return p
}

// Zeros creates a zero-initialized parameter with the given shape.
func Zeros(name string, shape []int) (*Parameter, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n < 0 {
		n = 0
	}
	return New(name, shape, make([]float64, n))
}

// Name returns the parameter name (e.g. "w", "hidden.bias").
func (p *Parameter) Name() string {
	return p.name
}

// Shape returns a copy of the parameter shape.
func (p *Parameter) Shape() []int {
	return append([]int(nil), p.shape...)
}

// Rows returns the first shape dimension, or 1 for scalars.
func (p *Parameter) Rows() int {
	if len(p.shape) == 0 {
		return 1
	}
	return p.shape[0]
}

// Cols returns the second shape dimension, or 1 for vectors and scalars.
func (p *Parameter) Cols() int {
	if len(p.shape) < 2 {
		return 1
	}
	return p.shape[1]
}

// Len returns the element count.
func (p *Parameter) Len() int {
	return len(p.data)
}

// Data returns the backing storage. Mutating the returned slice mutates the
// parameter; this is how update rules apply deltas in place.
func (p *Parameter) Data() []float64 {
	return p.data
}

// Set overwrites the parameter storage with the given values.
func (p *Parameter) Set(values []float64) error {
	if len(values) != len(p.data) {
		return errors.WithStack(&ShapeMismatchError{Name: p.name, Want: len(p.data), Got: len(values)})
	}
	copy(p.data, values)
	return nil
}

// SetRow overwrites one row of a matrix-shaped parameter.
func (p *Parameter) SetRow(i int, values []float64) error {
	cols := p.Cols()
	if len(values) != cols {
		return errors.WithStack(&ShapeMismatchError{Name: p.name, Want: cols, Got: len(values)})
	}
	if i < 0 || i >= p.Rows() {
		return errors.Errorf("param: row %d out of range for %s with %d rows", i, p.name, p.Rows())
	}
	copy(p.data[i*cols:(i+1)*cols], values)
	return nil
}

// Values returns a copy of the parameter storage.
func (p *Parameter) Values() []float64 {
	out := make([]float64, len(p.data))
	copy(out, p.data)
	return out
}
