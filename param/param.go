// Copyright 2026 The Anneal Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package param provides named parameter tensors and the bijection between
// an ordered parameter collection and one flat numeric buffer.
package param

import (
	"github.com/anneal-ml/anneal/internal/param"
)

// Parameter is a named, mutable numeric tensor with a fixed shape.
type Parameter = param.Parameter

// Vector is an ordered parameter sequence with flatten/unflatten support.
type Vector = param.Vector

// Snapshot is a deep copy of all parameter values at one point in time.
type Snapshot = param.Snapshot

// ShapeMismatchError reports a flat-buffer length mismatch.
type ShapeMismatchError = param.ShapeMismatchError

// New creates a parameter with the given name, shape and initial values.
//
// Example:
//
//	w, err := param.New("w", []int{2, 3}, make([]float64, 6))
func New(name string, shape []int, values []float64) (*Parameter, error) {
	return param.New(name, shape, values)
}

// MustNew is like New but panics on error.
func MustNew(name string, shape []int, values []float64) *Parameter {
	return param.MustNew(name, shape, values)
}

// Zeros creates a zero-initialized parameter with the given shape.
func Zeros(name string, shape []int) (*Parameter, error) {
	return param.Zeros(name, shape)
}

// NewVector creates a vector over the given parameters.
func NewVector(params []*Parameter) *Vector {
	return param.NewVector(params)
}
