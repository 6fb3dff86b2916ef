package optim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

// quadratic is a stub model with cost ||w - target||^2, minimized at
// w = target.
type quadratic struct {
	w      *param.Parameter
	target []float64
}

func newQuadratic(start, target []float64) *quadratic {
	return &quadratic{
		w:      param.MustNew("w", []int{len(start)}, start),
		target: target,
	}
}

func (q *quadratic) Parameters() []*param.Parameter { return []*param.Parameter{q.w} }
func (q *quadratic) CostNames() []string            { return []string{model.PrimaryCost} }

func (q *quadratic) Evaluate(model.Batch) (model.CostReport, error) {
	cost := 0.0
	for i, v := range q.w.Data() {
		d := v - q.target[i]
		cost += d * d
	}
	return model.CostReport{cost}, nil
}

func (q *quadratic) Gradients(model.Batch) ([][]float64, error) {
	g := make([]float64, q.w.Len())
	for i, v := range q.w.Data() {
		g[i] = 2 * (v - q.target[i])
	}
	return [][]float64{g}, nil
}

func (q *quadratic) TrainStep(b model.Batch) (model.CostReport, error) {
	return q.Evaluate(b)
}

func TestNewGlobalRejectsUnknownMethod(t *testing.T) {
	_, err := NewGlobal(GlobalConfig{Method: "simplex"})
	assert.Error(t, err)
}

func TestGlobalMinimizesQuadratic(t *testing.T) {
	m := newQuadratic([]float64{5, -3}, []float64{1, 2})
	g, err := NewGlobal(GlobalConfig{Method: "lbfgs", InnerIterations: 100})
	require.NoError(t, err)

	reports, norms, err := g.EpochStep(context.Background(), m, model.Dataset{model.Batch{}}, nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Nil(t, norms)

	assert.InDelta(t, 1.0, m.w.Data()[0], 1e-6)
	assert.InDelta(t, 2.0, m.w.Data()[1], 1e-6)
	assert.InDelta(t, 0.0, reports[0].Primary(), 1e-9)
}

func TestGlobalStartsFromBestSnapshot(t *testing.T) {
	m := newQuadratic([]float64{100, 100}, []float64{1, 2})
	g, err := NewGlobal(GlobalConfig{InnerIterations: 100})
	require.NoError(t, err)

	// The best snapshot sits at the optimum already; starting from it the
	// minimizer stays there regardless of the model's current position.
	best := param.Snapshot{[]float64{1, 2}}
	reports, _, err := g.EpochStep(context.Background(), m, model.Dataset{model.Batch{}}, best)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, reports[0].Primary(), 1e-9)
	assert.InDelta(t, 1.0, m.w.Data()[0], 1e-9)
}

func TestGlobalRejectsMisalignedSnapshot(t *testing.T) {
	m := newQuadratic([]float64{0, 0}, []float64{1, 2})
	g, err := NewGlobal(GlobalConfig{})
	require.NoError(t, err)

	_, _, err = g.EpochStep(context.Background(), m, model.Dataset{model.Batch{}}, param.Snapshot{[]float64{1}})
	assert.Error(t, err)
}

func TestGlobalHonorsCancellation(t *testing.T) {
	m := newQuadratic([]float64{5, -3}, []float64{1, 2})
	g, err := NewGlobal(GlobalConfig{InnerIterations: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = g.EpochStep(ctx, m, model.Dataset{model.Batch{}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGlobalRejectsEmptyTrainingSet(t *testing.T) {
	m := newQuadratic([]float64{0}, []float64{0})
	g, err := NewGlobal(GlobalConfig{})
	require.NoError(t, err)

	_, _, err = g.EpochStep(context.Background(), m, nil, nil)
	assert.Error(t, err)
}
