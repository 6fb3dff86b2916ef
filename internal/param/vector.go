package param

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ShapeMismatchError reports a length mismatch between a flat buffer and the
// storage it is bound to. It is fatal to the call and never retried.
type ShapeMismatchError struct {
	Name string // parameter or vector name, for diagnostics
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("param: shape mismatch for %s: want %d elements, got %d", e.Name, e.Want, e.Got)
	}
	return fmt.Sprintf("param: shape mismatch: want %d elements, got %d", e.Want, e.Got)
}

// Vector is an ordered sequence of parameters with a stable order, together
// with the bijection between that sequence and one contiguous flat buffer
// (concatenation in sequence order).
//
// Global vector optimizers work on the flat buffer; per-parameter update
// rules work on the parameters directly.
type Vector struct {
	params []*Parameter
	total  int
}

// NewVector creates a vector over the given parameters. The slice is not
// copied; parameter identity must stay stable for the run.
func NewVector(params []*Parameter) *Vector {
	total := 0
	for _, p := range params {
		total += p.Len()
	}
	return &Vector{params: params, total: total}
}

// Parameters returns the underlying parameter sequence.
func (v *Vector) Parameters() []*Parameter {
	return v.params
}

// FlatLen returns the total flat length, the sum of per-parameter element
// counts.
func (v *Vector) FlatLen() int {
	return v.total
}

// Flatten concatenates each parameter's values in declared order into one
// flat buffer. No side effects.
func (v *Vector) Flatten() []float64 {
	out := make([]float64, 0, v.total)
	for _, p := range v.params {
		out = append(out, p.data...)
	}
	return out
}

// FlattenVec is Flatten packaged as a gonum vector, for use with external
// scalar-vector minimizers.
func (v *Vector) FlattenVec() *mat.VecDense {
	return mat.NewVecDense(v.total, v.Flatten())
}

// Unflatten splits a flat buffer back into per-parameter buffers, the
// inverse of Flatten. Fails with ShapeMismatchError if the buffer length
// does not equal the total element count. The returned slices alias flat.
func (v *Vector) Unflatten(flat []float64) ([][]float64, error) {
	if len(flat) != v.total {
		return nil, errors.WithStack(&ShapeMismatchError{Want: v.total, Got: len(flat)})
	}
	out := make([][]float64, len(v.params))
	start := 0
	for i, p := range v.params {
		out[i] = flat[start : start+p.Len()]
		start += p.Len()
	}
	return out, nil
}

// Apply overwrites each parameter's storage with the corresponding segment
// of the flat buffer. The only side effect is mutation of the external
// model's parameters.
func (v *Vector) Apply(flat []float64) error {
	arrays, err := v.Unflatten(flat)
	if err != nil {
		return err
	}
	for i, p := range v.params {
		if err := p.Set(arrays[i]); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is a deep copy of all parameter values at one point in time,
// aligned with the vector's parameter order.
type Snapshot [][]float64

// Snapshot deep-copies the current parameter values.
func (v *Vector) Snapshot() Snapshot {
	out := make(Snapshot, len(v.params))
	for i, p := range v.params {
		out[i] = p.Values()
	}
	return out
}

// Restore overwrites the parameters with a previously taken snapshot.
func (v *Vector) Restore(s Snapshot) error {
	if len(s) != len(v.params) {
		return errors.Errorf("param: snapshot holds %d parameters, vector holds %d", len(s), len(v.params))
	}
	for i, p := range v.params {
		if err := p.Set(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// Flat concatenates the snapshot into one flat buffer, in snapshot order.
func (s Snapshot) Flat() []float64 {
	n := 0
	for _, vals := range s {
		n += len(vals)
	}
	out := make([]float64, 0, n)
	for _, vals := range s {
		out = append(out, vals...)
	}
	return out
}
