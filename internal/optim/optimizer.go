// Package optim implements the parameter update strategies driven by the
// training loop.
//
// This package provides:
//   - Rule interface: one full training pass, applied batch by batch
//   - SGD: stochastic gradient descent, switching to Nesterov's accelerated
//     gradient when momentum is enabled
//   - Global: a wrapper around an external scalar-vector minimizer working
//     on the flattened parameter vector
//
// Strategy selection is explicit configuration, not inheritance: the
// training loop is handed a Rule and never inspects which variant it got.
package optim

import (
	"context"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

// Rule computes new parameter states from the current state, gradients, and
// rule-specific memory (velocity buffers, flat snapshots).
//
// A Rule instance belongs to a single training run: its memory is aligned
// with one model's parameters and is discarded when the run ends.
type Rule interface {
	// Name identifies the rule in log lines.
	Name() string

	// EpochStep makes one full pass over the training set, mutating the
	// model's parameters in place batch by batch. It returns the per-batch
	// cost reports and the per-batch pre-clip gradient norms (one norm per
	// parameter) for aggregate logging.
	//
	// best is the best validated parameter snapshot so far; rules that
	// restart from a known-good point (the global minimizer) seed from it,
	// purely sequential rules ignore it.
	//
	// The context is checked between batches: on cancellation EpochStep
	// returns the work collected so far together with the context error.
	EpochStep(ctx context.Context, m model.Model, train model.Dataset, best param.Snapshot) ([]model.CostReport, [][]float64, error)
}

// Annealer is implemented by rules with a tunable learning rate. The
// training loop decays the rate on stagnant validation checkpoints.
type Annealer interface {
	// LearningRate returns the current learning rate.
	LearningRate() float64

	// Anneal multiplies the learning rate by (1 - decay).
	Anneal(decay float64)
}
