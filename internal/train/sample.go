package train

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

// Sample is a one-shot trainer that replaces network weights with samples
// drawn from the training data: decoding weights with rows sampled from the
// targets, each encoding layer's weight columns with samples of that layer's
// input activations. Sampling is uniform over the batch stream via
// reservoir sampling, so the stream length need not be known up front.
//
// It performs no gradient steps; it is an initializer that reuses the
// Trainer contract, typically followed by a gradient-based run.
type Sample struct {
	cfg Config
	rng *rand.Rand
}

// NewSample creates a sample initializer seeded from Config.Seed.
func NewSample(cfg Config) (*Sample, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Sample{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Train implements Trainer. The model must be model.Layered; the validation
// set is only used to report the cost at the sampled weights.
func (s *Sample) Train(ctx context.Context, m model.Model, trainSet, validSet model.Dataset) (Result, error) {
	lm, ok := m.(model.Layered)
	if !ok {
		return Result{}, errors.New("train: sample initializer requires a layered model")
	}
	weights := lm.Weights()
	if len(weights) == 0 {
		return Result{}, errors.New("train: layered model exposes no weights")
	}
	if len(trainSet) == 0 {
		return Result{}, errors.New("train: empty training set")
	}

	// Decoding weights: one sampled target row per output unit row.
	out := weights[len(weights)-1]
	pool, err := s.reservoir(matrixRows(trainSet, lastMatrix), out.Rows(), out.Cols())
	if err != nil {
		return Result{}, err
	}
	for i, row := range pool {
		if err := out.SetRow(i, row); err != nil {
			return Result{}, err
		}
	}
	log.Infof("setting weights for %s: %d x %d", out.Name(), out.Rows(), out.Cols())

	// Encoding weights, input side first: each column of layer L's weight
	// matrix is a sampled activation vector of the layer feeding into it.
	for layer := 0; layer < len(weights)-1; layer++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		w := weights[layer]
		stream := matrixRows(trainSet, firstMatrix)
		if layer > 0 {
			stream = activationStream(lm, trainSet, layer-1)
		}
		pool, err := s.reservoir(stream, w.Cols(), w.Rows())
		if err != nil {
			return Result{}, err
		}
		if err := setColumns(w, pool); err != nil {
			return Result{}, err
		}
		log.Infof("setting weights for %s: %d x %d", w.Name(), w.Rows(), w.Cols())
	}

	res := Result{Status: StatusExhausted, Iterations: 1}
	if len(validSet) > 0 {
		reports := make([]model.CostReport, 0, len(validSet))
		for _, b := range validSet {
			r, err := m.Evaluate(b)
			if err != nil {
				return Result{}, errors.Wrap(err, "train: evaluation after sampling failed")
			}
			reports = append(reports, r)
		}
		costs := model.MeanReports(reports)
		log.Infof("sample -- valid %s", model.FormatCosts(m.CostNames(), costs))
		res.BestCost = costs.Primary()
	}
	return res, nil
}

// reservoir selects a uniform random sample of n vectors of length dim from
// the stream, normalizing each to unit L2 norm. If the stream runs out
// before the pool fills, the pool is padded with duplicates distorted by
// per-component standard-deviation noise.
func (s *Sample) reservoir(next func() ([]float64, bool), n, dim int) ([][]float64, error) {
	var pool [][]float64
	seen := 0
	for x, ok := next(); ok; x, ok = next() {
		if len(x) != dim {
			return nil, errors.WithStack(&param.ShapeMismatchError{Want: dim, Got: len(x)})
		}
		if len(pool) < n {
			pool = append(pool, normalized(x))
			seen++
			continue
		}
		if j := s.rng.Intn(seen + 1); j < n {
			pool[j] = normalized(x)
		}
		seen++
	}
	if len(pool) == 0 {
		return nil, errors.New("train: sample stream produced no rows")
	}

	if len(pool) < n {
		stddevs := make([]float64, dim)
		column := make([]float64, len(pool))
		for d := 0; d < dim; d++ {
			for i, x := range pool {
				column[i] = x[d]
			}
			stddevs[d] = stat.PopStdDev(column, nil)
		}
		filled := len(pool)
		for len(pool) < n {
			src := pool[s.rng.Intn(filled)]
			dup := make([]float64, dim)
			for d := range dup {
				dup[d] = src[d] + stddevs[d]*s.rng.NormFloat64()
			}
			pool = append(pool, dup)
		}
	}
	return pool, nil
}

func normalized(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

// setColumns writes pool[c] into column c of the weight matrix.
func setColumns(w *param.Parameter, pool [][]float64) error {
	rows, cols := w.Rows(), w.Cols()
	data := w.Data()
	for c, x := range pool {
		if len(x) != rows {
			return errors.WithStack(&param.ShapeMismatchError{Name: w.Name(), Want: rows, Got: len(x)})
		}
		for r := 0; r < rows; r++ {
			data[r*cols+c] = x[r]
		}
	}
	return nil
}

func firstMatrix(b model.Batch) *mat.Dense { return b[0] }
func lastMatrix(b model.Batch) *mat.Dense  { return b[len(b)-1] }

// matrixRows streams the rows of one positional matrix of every batch.
func matrixRows(ds model.Dataset, which func(model.Batch) *mat.Dense) func() ([]float64, bool) {
	batch, row := 0, 0
	return func() ([]float64, bool) {
		for batch < len(ds) {
			m := which(ds[batch])
			r, _ := m.Dims()
			if row < r {
				row++
				return m.RawRowView(row - 1), true
			}
			batch++
			row = 0
		}
		return nil, false
	}
}

// activationStream streams the activations after the given hidden layer for
// every input row of the dataset.
func activationStream(lm model.Layered, ds model.Dataset, layer int) func() ([]float64, bool) {
	rows := matrixRows(ds, firstMatrix)
	return func() ([]float64, bool) {
		row, ok := rows()
		if !ok {
			return nil, false
		}
		acts := lm.FeedForward(row)
		if layer >= len(acts) {
			return nil, false
		}
		return acts[layer], true
	}
}
