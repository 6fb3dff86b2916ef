package train

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/anneal-ml/anneal/internal/checkpoint"
	"github.com/anneal-ml/anneal/internal/model"
)

// CheckpointSaver persists an intermediate model under a deterministic name.
// Persistence itself is the caller's concern; the trainer only guarantees
// the name is reproducible from the model configuration and tap depth.
type CheckpointSaver func(name string, m model.Model) error

// Layerwise adapts parameters with a variant of layerwise pretraining.
//
// It inserts "taps" at increasing depths into the model: a tap at depth d is
// a view sharing the first d hidden layers' parameters with the original
// model plus a fresh decoding head. Training the taps in order trains
// progressively deeper prefixes of the network while preserving the model's
// own loss, noise, and regularization settings.
//
// Each finished tap is handed to the checkpoint saver, if any, under a name
// derived from the model's configuration fingerprint and the tap depth.
type Layerwise struct {
	cfg   Config
	saver CheckpointSaver
}

// NewLayerwise creates a layerwise pretrainer. Each tap is trained with an
// inner SGD/NAG loop configured by cfg. saver may be nil.
func NewLayerwise(cfg Config, saver CheckpointSaver) (*Layerwise, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Layerwise{cfg: cfg, saver: saver}, nil
}

// CheckpointName returns the deterministic checkpoint name for a model
// fingerprint and tap depth.
func CheckpointName(fingerprint string, depth int) string {
	return fmt.Sprintf("layerwise-%s-%d.ckpt", fingerprint, depth)
}

// FileCheckpointSaver returns a saver writing each checkpoint as a .anneal
// snapshot file under dir.
func FileCheckpointSaver(dir string) CheckpointSaver {
	return func(name string, m model.Model) error {
		return checkpoint.Save(filepath.Join(dir, name), m, checkpoint.Training{
			Method: MethodLayerwise,
		})
	}
}

// Train implements Trainer. The model must be model.Tappable. Returns the
// result of the deepest tap trained; interruption stops the tap sequence
// after the current tap's own restoration.
func (lw *Layerwise) Train(ctx context.Context, m model.Model, trainSet, validSet model.Dataset) (Result, error) {
	tm, ok := m.(model.Tappable)
	if !ok {
		return Result{}, errors.New("train: layerwise pretraining requires a tappable model")
	}

	var last Result
	for depth := 1; depth <= tm.NumLayers(); depth++ {
		tap, err := tm.Tap(depth)
		if err != nil {
			return last, errors.Wrapf(err, "train: tapping at depth %d failed", depth)
		}
		log.Infof("layerwise: training tap at depth %d/%d", depth, tm.NumLayers())

		loop, err := NewLoop(lw.cfg)
		if err != nil {
			return last, err
		}
		res, err := loop.Train(ctx, tap, trainSet, validSet)
		if err != nil {
			return last, err
		}
		last = res

		if lw.saver != nil {
			name := CheckpointName(tm.Fingerprint(), depth)
			if err := lw.saver(name, tap); err != nil {
				return last, errors.Wrapf(err, "train: saving checkpoint %s failed", name)
			}
		}
		if res.Status == StatusInterrupted {
			break
		}
	}
	return last, nil
}
