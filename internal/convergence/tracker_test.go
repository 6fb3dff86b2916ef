package convergence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

// scripted is a stub model whose validation costs follow a fixed script,
// one entry per Evaluate call. The final entry repeats forever.
type scripted struct {
	params []*param.Parameter
	costs  []float64
	calls  int
}

func newScripted(costs ...float64) *scripted {
	return &scripted{
		params: []*param.Parameter{param.MustNew("w", []int{2}, []float64{1, 2})},
		costs:  costs,
	}
}

func (s *scripted) Parameters() []*param.Parameter { return s.params }
func (s *scripted) CostNames() []string            { return []string{model.PrimaryCost, "err"} }

func (s *scripted) Evaluate(model.Batch) (model.CostReport, error) {
	i := s.calls
	if i >= len(s.costs) {
		i = len(s.costs) - 1
	}
	s.calls++
	return model.CostReport{s.costs[i], s.costs[i] / 2}, nil
}

func (s *scripted) Gradients(model.Batch) ([][]float64, error) {
	return [][]float64{{0, 0}}, nil
}

func (s *scripted) TrainStep(b model.Batch) (model.CostReport, error) {
	return s.Evaluate(b)
}

// oneBatch keeps validation sequential so the scripted call counter is safe.
var oneBatch = model.Dataset{model.Batch{}}

func TestEvaluateImprovesAndSnapshots(t *testing.T) {
	m := newScripted(5.0)
	tr := NewTracker(m, 100, 0)

	signal, err := tr.Evaluate(context.Background(), 0, oneBatch, m)
	require.NoError(t, err)
	assert.Equal(t, Improved, signal)
	assert.Equal(t, 5.0, tr.State().BestCost)
	assert.Equal(t, 0, tr.State().BestIteration)
	assert.Equal(t, []float64{1, 2}, tr.State().BestParams[0])
}

func TestBestCostMonotonic(t *testing.T) {
	m := newScripted(5, 3, 4, 2)
	tr := NewTracker(m, 100, 0)

	wantBest := []float64{5, 3, 3, 2}
	wantIter := []int{0, 1, 1, 3}
	for i := range wantBest {
		_, err := tr.Evaluate(context.Background(), i, oneBatch, m)
		require.NoError(t, err)
		assert.Equal(t, wantBest[i], tr.State().BestCost, "checkpoint %d", i)
		assert.Equal(t, wantIter[i], tr.State().BestIteration, "checkpoint %d", i)
	}
}

func TestMinImprovementScalesWithBestCost(t *testing.T) {
	m := newScripted(1.0, 0.95, 0.85)
	tr := NewTracker(m, 100, 0.1)

	signal, err := tr.Evaluate(context.Background(), 0, oneBatch, m)
	require.NoError(t, err)
	assert.Equal(t, Improved, signal)

	// 1.0 - 0.95 = 0.05 is not > 1.0 * 0.1.
	signal, err = tr.Evaluate(context.Background(), 1, oneBatch, m)
	require.NoError(t, err)
	assert.Equal(t, NoImprovement, signal)
	assert.Equal(t, 1.0, tr.State().BestCost)

	// 1.0 - 0.85 = 0.15 is > 1.0 * 0.1.
	signal, err = tr.Evaluate(context.Background(), 2, oneBatch, m)
	require.NoError(t, err)
	assert.Equal(t, Improved, signal)
	assert.Equal(t, 0.85, tr.State().BestCost)
}

func TestPatienceFiresExactlyOnce(t *testing.T) {
	const patience = 2
	m := newScripted(1.0, 2.0)
	tr := NewTracker(m, patience, 0)

	_, err := tr.Evaluate(context.Background(), 0, oneBatch, m)
	require.NoError(t, err)

	// Stagnant checkpoints 1 and 2 stay within the patience budget.
	for i := 1; i <= patience; i++ {
		signal, err := tr.Evaluate(context.Background(), i, oneBatch, m)
		require.NoError(t, err, "checkpoint %d", i)
		assert.Equal(t, NoImprovement, signal)
	}

	// The (patience+1)-th stagnant checkpoint elapses the budget.
	signal, err := tr.Evaluate(context.Background(), patience+1, oneBatch, m)
	assert.ErrorIs(t, err, ErrPatienceElapsed)
	assert.Equal(t, NoImprovement, signal)
}

func TestEvaluateRejectsEmptyValidationSet(t *testing.T) {
	m := newScripted(1.0)
	tr := NewTracker(m, 100, 0)

	_, err := tr.Evaluate(context.Background(), 0, nil, m)
	assert.Error(t, err)
}

func TestEvaluateHonorsCancellation(t *testing.T) {
	m := newScripted(1.0)
	tr := NewTracker(m, 100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Evaluate(ctx, 0, oneBatch, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRestore(t *testing.T) {
	m := newScripted(1.0)
	tr := NewTracker(m, 100, 0)

	_, err := tr.Evaluate(context.Background(), 0, oneBatch, m)
	require.NoError(t, err)

	m.params[0].Data()[0] = -42
	require.NoError(t, tr.Restore())
	assert.Equal(t, []float64{1, 2}, m.params[0].Data())
}

func TestValidationAveragesAcrossBatches(t *testing.T) {
	// Costs 1, 2, 3 across three batches average to 2.
	m := newScripted(1, 2, 3)
	tr := NewTracker(m, 100, 0)
	valid := model.Dataset{model.Batch{}, model.Batch{}, model.Batch{}}

	_, err := tr.Evaluate(context.Background(), 0, valid, m)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, tr.State().BestCost, 1e-12)
}
