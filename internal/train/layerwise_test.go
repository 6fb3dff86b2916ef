package train

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anneal-ml/anneal/internal/model"
)

// tappableStub exposes two hidden layers; each Tap hands back a fresh stub
// model so the inner loops run against real Trainer machinery.
type tappableStub struct {
	*layeredStub
	taps []model.Model
}

func newTappableStub() *tappableStub {
	return &tappableStub{layeredStub: newLayeredStub()}
}

func (s *tappableStub) NumLayers() int      { return 2 }
func (s *tappableStub) Fingerprint() string { return "2x2-relu" }

func (s *tappableStub) Tap(depth int) (model.Model, error) {
	tap := newStubModel([]float64{float64(depth)}, []float64{0}, 1.0)
	s.taps = append(s.taps, tap)
	return tap, nil
}

func TestLayerwiseTrainsEveryTap(t *testing.T) {
	var saved []string
	saver := func(name string, m model.Model) error {
		saved = append(saved, name)
		return nil
	}
	lw, err := NewLayerwise(Config{ValidationFrequency: 1, Iterations: 2}, saver)
	require.NoError(t, err)

	m := newTappableStub()
	res, err := lw.Train(context.Background(), m, oneTrainBatch, oneValidBatch)
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, res.Status)
	assert.Len(t, m.taps, 2)
	assert.Equal(t, []string{
		"layerwise-2x2-relu-1.ckpt",
		"layerwise-2x2-relu-2.ckpt",
	}, saved)
}

func TestLayerwiseWithoutSaver(t *testing.T) {
	lw, err := NewLayerwise(Config{ValidationFrequency: 1, Iterations: 1}, nil)
	require.NoError(t, err)

	m := newTappableStub()
	_, err = lw.Train(context.Background(), m, oneTrainBatch, oneValidBatch)
	require.NoError(t, err)
	assert.Len(t, m.taps, 2)
}

func TestLayerwiseStopsAfterInterruptedTap(t *testing.T) {
	calls := 0
	saver := func(string, model.Model) error {
		calls++
		return nil
	}
	lw, err := NewLayerwise(Config{ValidationFrequency: 1, Iterations: 10}, saver)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newTappableStub()
	res, err := lw.Train(ctx, m, oneTrainBatch, oneValidBatch)
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, res.Status)
	assert.Len(t, m.taps, 1, "no deeper taps after an interrupted one")
	assert.Equal(t, 1, calls, "the interrupted tap still gets checkpointed")
}

func TestLayerwiseRequiresTappableModel(t *testing.T) {
	lw, err := NewLayerwise(Config{}, nil)
	require.NoError(t, err)

	flat := newStubModel([]float64{1}, []float64{0}, 1.0)
	_, err = lw.Train(context.Background(), flat, oneTrainBatch, oneValidBatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tappable model")
}

func TestCheckpointName(t *testing.T) {
	assert.Equal(t, "layerwise-ae41f0-3.ckpt", CheckpointName("ae41f0", 3))
}

var _ model.Tappable = (*tappableStub)(nil)
