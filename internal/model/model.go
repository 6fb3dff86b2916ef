// Package model declares the contracts the optimizer consumes from the
// differentiable-model and dataset collaborators.
//
// The optimizer never differentiates anything itself: the model compiles its
// own forward pass and produces a scalar primary cost, named auxiliary
// monitor values, and per-parameter gradients for a batch. How it does so
// (symbolic graphs, hand-written derivatives, GPU kernels) is its own
// business.
package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/anneal-ml/anneal/internal/param"
)

// PrimaryCost is the conventional name of the scalar objective at index 0 of
// every cost report.
const PrimaryCost = "J"

// Batch is one minibatch: one matrix per declared model input, bound
// positionally. Each matrix is row-major with one row per sample.
type Batch []*mat.Dense

// Dataset is a finite, re-iterable sequence of batches. Training batches and
// validation batches are separate Datasets.
type Dataset []Batch

// CostReport is an ordered sequence of scalar costs aligned with the model's
// CostNames. Index 0 is always the primary objective J; the remaining
// entries are auxiliary monitors reported but not optimized directly.
type CostReport []float64

// Primary returns the primary objective value.
func (r CostReport) Primary() float64 {
	return r[0]
}

// MeanReports averages reports component-wise, preserving ordering. Returns
// nil for an empty input.
func MeanReports(reports []CostReport) CostReport {
	if len(reports) == 0 {
		return nil
	}
	mean := make(CostReport, len(reports[0]))
	for _, r := range reports {
		for i, v := range r {
			mean[i] += v
		}
	}
	n := float64(len(reports))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// Model is the differentiable-model capability the optimizer drives.
//
// Parameter identity must be stable across the run: Parameters must return
// the same *param.Parameter values, in the same order, every time.
type Model interface {
	// Parameters returns the ordered trainable parameters.
	Parameters() []*param.Parameter

	// CostNames returns the cost labels, index 0 always PrimaryCost.
	// The order matches every CostReport the model produces.
	CostNames() []string

	// Evaluate computes the costs on a batch without side effects.
	Evaluate(b Batch) (CostReport, error)

	// Gradients computes the gradient of the primary cost with respect to
	// each parameter, aligned with Parameters. Each gradient is a flat
	// buffer of the parameter's element count.
	Gradients(b Batch) ([][]float64, error)

	// TrainStep evaluates the costs on a batch and additionally applies any
	// model-internal update rules (e.g. running statistics), independent of
	// the optimizer's own parameter updates.
	TrainStep(b Batch) (CostReport, error)
}

// Layered is implemented by models whose parameters form a stack of weight
// matrices, enabling the data-driven initialization and layerwise
// strategies.
type Layered interface {
	Model

	// Weights returns the weight matrices in input-to-output order. Each is
	// 2-D shaped; output weights are the last entry.
	Weights() []*param.Parameter

	// FeedForward runs one input sample through the network and returns the
	// activation vector after each hidden layer, input side first.
	FeedForward(input []float64) [][]float64
}

// Tappable is implemented by layered models that can expose truncated views
// of themselves for layerwise pretraining.
type Tappable interface {
	Layered

	// NumLayers returns the number of hidden layers.
	NumLayers() int

	// Tap returns a model that shares the first depth hidden layers'
	// parameters with the receiver and owns a fresh decoding head. Training
	// the tap trains the shared weights in place.
	Tap(depth int) (Model, error)

	// Fingerprint returns a deterministic digest of the model configuration
	// (layer sizes, regularization and noise coefficients). Checkpoints
	// written during layerwise pretraining derive their names from it, so it
	// must be reproducible from configuration alone.
	Fingerprint() string
}
