package main

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/anneal-ml/anneal/model"
	"github.com/anneal-ml/anneal/param"
)

// mlp is the built-in demo model: a one-hidden-layer linear network with
// analytic gradients, squared-error cost and a mean-absolute-error monitor.
//
//	h    = b1 + x W1
//	pred = b2 + h w2
//	J    = mean((pred - y)^2)
//
// It exists to exercise every training method from the command line: it is a
// differentiable model for the gradient methods and exposes its weight stack
// for the sample and layerwise methods. Real models live outside this
// module.
type mlp struct {
	dim    int
	hidden int

	w1 *param.Parameter // [dim, hidden]
	b1 *param.Parameter // [hidden]
	w2 *param.Parameter // [hidden, 1]
	b2 *param.Parameter // [1]
}

func newMLP(dim, hidden int, rng *rand.Rand) *mlp {
	w1 := make([]float64, dim*hidden)
	w2 := make([]float64, hidden)
	for i := range w1 {
		w1[i] = 0.1 * rng.NormFloat64()
	}
	for i := range w2 {
		w2[i] = 0.1 * rng.NormFloat64()
	}
	return &mlp{
		dim:    dim,
		hidden: hidden,
		w1:     param.MustNew("w1", []int{dim, hidden}, w1),
		b1:     param.MustNew("b1", []int{hidden}, make([]float64, hidden)),
		w2:     param.MustNew("w2", []int{hidden, 1}, w2),
		b2:     param.MustNew("b2", []int{1}, make([]float64, 1)),
	}
}

func (m *mlp) Parameters() []*param.Parameter {
	return []*param.Parameter{m.w1, m.b1, m.w2, m.b2}
}

func (m *mlp) CostNames() []string {
	return []string{model.PrimaryCost, "mae"}
}

// hiddenActivation computes h = b1 + x W1 for one input row.
func (m *mlp) hiddenActivation(x []float64) []float64 {
	w1 := m.w1.Data()
	h := append([]float64(nil), m.b1.Data()...)
	for i, v := range x {
		row := w1[i*m.hidden : (i+1)*m.hidden]
		for j, w := range row {
			h[j] += v * w
		}
	}
	return h
}

func (m *mlp) predict(h []float64) float64 {
	w2 := m.w2.Data()
	out := m.b2.Data()[0]
	for j, v := range h {
		out += v * w2[j]
	}
	return out
}

func (m *mlp) Evaluate(b model.Batch) (model.CostReport, error) {
	x, y := b[0], b[1]
	n, _ := x.Dims()
	var sq, abs float64
	for i := 0; i < n; i++ {
		r := m.predict(m.hiddenActivation(x.RawRowView(i))) - y.At(i, 0)
		sq += r * r
		abs += math.Abs(r)
	}
	return model.CostReport{sq / float64(n), abs / float64(n)}, nil
}

func (m *mlp) Gradients(b model.Batch) ([][]float64, error) {
	x, y := b[0], b[1]
	n, _ := x.Dims()
	gw1 := make([]float64, m.dim*m.hidden)
	gb1 := make([]float64, m.hidden)
	gw2 := make([]float64, m.hidden)
	gb2 := make([]float64, 1)
	w2 := m.w2.Data()

	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		h := m.hiddenActivation(row)
		r := m.predict(h) - y.At(i, 0)

		gb2[0] += 2 * r
		for j := 0; j < m.hidden; j++ {
			gw2[j] += 2 * r * h[j]
			gb1[j] += 2 * r * w2[j]
			for k, v := range row {
				gw1[k*m.hidden+j] += 2 * r * w2[j] * v
			}
		}
	}

	scale := 1 / float64(n)
	for _, g := range [][]float64{gw1, gb1, gw2, gb2} {
		for i := range g {
			g[i] *= scale
		}
	}
	return [][]float64{gw1, gb1, gw2, gb2}, nil
}

func (m *mlp) TrainStep(b model.Batch) (model.CostReport, error) {
	// No model-internal update rules; a train step is an evaluation.
	return m.Evaluate(b)
}

// Weights returns the weight stack, decoder last.
func (m *mlp) Weights() []*param.Parameter {
	return []*param.Parameter{m.w1, m.w2}
}

// FeedForward returns the activation after the hidden layer.
func (m *mlp) FeedForward(input []float64) [][]float64 {
	return [][]float64{m.hiddenActivation(input)}
}

func (m *mlp) NumLayers() int {
	return 1
}

// Tap returns a view sharing the encoder parameters with a fresh decoding
// head, so training the tap trains w1 and b1 in place.
func (m *mlp) Tap(depth int) (model.Model, error) {
	if depth != 1 {
		return nil, fmt.Errorf("mlp has 1 hidden layer, no tap at depth %d", depth)
	}
	return &mlp{
		dim:    m.dim,
		hidden: m.hidden,
		w1:     m.w1,
		b1:     m.b1,
		w2:     param.MustNew("w2", []int{m.hidden, 1}, make([]float64, m.hidden)),
		b2:     param.MustNew("b2", []int{1}, make([]float64, 1)),
	}, nil
}

func (m *mlp) Fingerprint() string {
	return fmt.Sprintf("mlp-%d-%d", m.dim, m.hidden)
}

// syntheticData builds train and validation sets for a random ground-truth
// linear model with additive Gaussian noise.
func syntheticData(rng *rand.Rand, dim, samples, batchSize int) (model.Dataset, model.Dataset) {
	trueW := make([]float64, dim)
	for j := range trueW {
		trueW[j] = rng.NormFloat64()
	}
	trueB := rng.NormFloat64()

	makeBatch := func(n int) model.Batch {
		x := mat.NewDense(n, dim, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			out := trueB
			for j := 0; j < dim; j++ {
				v := rng.NormFloat64()
				x.Set(i, j, v)
				out += trueW[j] * v
			}
			y.Set(i, 0, out+0.05*rng.NormFloat64())
		}
		return model.Batch{x, y}
	}

	numTrain := samples * 4 / 5 / batchSize
	numValid := samples / 5 / batchSize
	if numValid == 0 {
		numValid = 1
	}
	trainSet := make(model.Dataset, numTrain)
	for i := range trainSet {
		trainSet[i] = makeBatch(batchSize)
	}
	validSet := make(model.Dataset, numValid)
	for i := range validSet {
		validSet[i] = makeBatch(batchSize)
	}
	return trainSet, validSet
}
