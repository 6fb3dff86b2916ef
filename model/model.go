// Copyright 2026 The Anneal Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model declares the contracts the optimizer consumes from the
// differentiable-model and dataset collaborators. Implement model.Model to
// make a model trainable; the optimizer never differentiates anything
// itself.
package model

import (
	"github.com/anneal-ml/anneal/internal/model"
)

// PrimaryCost is the conventional name of the scalar objective at index 0
// of every cost report.
const PrimaryCost = model.PrimaryCost

// Batch is one minibatch: one matrix per declared model input, bound
// positionally, one row per sample.
type Batch = model.Batch

// Dataset is a finite, re-iterable sequence of batches.
type Dataset = model.Dataset

// CostReport is an ordered sequence of scalar costs, index 0 the primary
// objective.
type CostReport = model.CostReport

// Model is the differentiable-model capability the optimizer drives.
type Model = model.Model

// Layered is implemented by models whose parameters form a stack of weight
// matrices.
type Layered = model.Layered

// Tappable is implemented by layered models that can expose truncated views
// of themselves for layerwise pretraining.
type Tappable = model.Tappable

// MeanReports averages reports component-wise, preserving ordering.
func MeanReports(reports []CostReport) CostReport {
	return model.MeanReports(reports)
}
