// Package gradient implements per-parameter gradient transformations: global
// L2 norm clipping and delta application with an optional zero-crossing
// clamp.
package gradient

import (
	"gonum.org/v1/gonum/floats"

	"github.com/anneal-ml/anneal/internal/param"
)

// Policy controls how raw gradients become parameter deltas.
//
// The zero value disables clipping (MaxNorm treated as +Inf when zero) and
// the zero clamp.
type Policy struct {
	// MaxNorm bounds the L2 norm of each gradient tensor. Gradients with a
	// larger norm are scaled down to exactly MaxNorm, direction preserved.
	MaxNorm float64

	// ClipAtZero forces any parameter element whose sign flips through zero
	// during an update to exactly zero. This prevents oscillation across the
	// zero boundary under sparsity-inducing regularization.
	ClipAtZero bool
}

// Rescale clips the gradient in place when its L2 norm exceeds MaxNorm and
// returns the norm the gradient had before clipping.
//
// The pre-rescale norm is returned in both branches: the caller logs the
// true gradient magnitude even when a rescale occurred.
func (pol Policy) Rescale(grad []float64) float64 {
	norm := floats.Norm(grad, 2)
	if pol.MaxNorm > 0 && norm > pol.MaxNorm {
		floats.Scale(pol.MaxNorm/norm, grad)
	}
	return norm
}

// ApplyDelta adds delta to the parameter in place: p_new = p_old + delta.
//
// With ClipAtZero set, elements that were positive and become <= 0, or were
// negative and become >= 0, are set to exactly zero.
func (pol Policy) ApplyDelta(p *param.Parameter, delta []float64) error {
	data := p.Data()
	if len(delta) != len(data) {
		return &param.ShapeMismatchError{Name: p.Name(), Want: len(data), Got: len(delta)}
	}
	if !pol.ClipAtZero {
		floats.Add(data, delta)
		return nil
	}
	for i, d := range delta {
		old := data[i]
		next := old + d
		if (old > 0 && next <= 0) || (old < 0 && next >= 0) {
			next = 0
		}
		data[i] = next
	}
	return nil
}
