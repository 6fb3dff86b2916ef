// Package convergence tracks the best-seen primary cost across periodic
// validation checkpoints and decides whether training should continue,
// anneal, or stop.
package convergence

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/parallel"
	"github.com/anneal-ml/anneal/internal/param"
)

// ErrPatienceElapsed signals that the patience budget ran out: the number of
// iterations since the last improvement exceeds the configured patience.
// It is a graceful terminal condition for the training loop, not a defect.
var ErrPatienceElapsed = errors.New("convergence: patience elapsed")

// initialBestCost is effectively infinite but stays finite so the
// improvement threshold bestCost*minImprovement remains well-defined
// (an IEEE infinity times a zero minImprovement would be NaN).
const initialBestCost = 1e100

// Signal is the outcome of one validation checkpoint.
type Signal int

const (
	// Improved means the primary cost beat the best seen so far by more
	// than the minimum improvement fraction.
	Improved Signal = iota
	// NoImprovement means it did not; the loop reacts by annealing the
	// learning rate. It never surfaces past the loop.
	NoImprovement
)

func (s Signal) String() string {
	switch s {
	case Improved:
		return "improved"
	case NoImprovement:
		return "no improvement"
	}
	return "unknown"
}

// State holds the best validated parameters seen so far. It is mutated only
// by Tracker.Evaluate and consumed once at training-loop termination to
// restore the model.
type State struct {
	BestCost      float64
	BestIteration int
	BestParams    param.Snapshot
}

// Tracker evaluates a model on the validation set at periodic checkpoints
// and maintains the best-parameters snapshot.
type Tracker struct {
	patience       int
	minImprovement float64
	names          []string
	vec            *param.Vector
	par            parallel.Config

	state State
}

// NewTracker creates a tracker bound to the model's parameters. The initial
// best snapshot is the model's current parameter values, so restoration is
// well-defined even if training is interrupted before the first checkpoint.
func NewTracker(m model.Model, patience int, minImprovement float64) *Tracker {
	vec := param.NewVector(m.Parameters())
	return &Tracker{
		patience:       patience,
		minImprovement: minImprovement,
		names:          m.CostNames(),
		vec:            vec,
		par:            parallel.DefaultConfig(),
		state: State{
			BestCost:      initialBestCost,
			BestIteration: 0,
			BestParams:    vec.Snapshot(),
		},
	}
}

// State returns the current tracking state.
func (t *Tracker) State() State {
	return t.state
}

// Evaluate computes the mean cost report over the validation set and decides
// whether iteration improved on the best seen so far.
//
// An iteration is an improvement iff
//
//	bestCost - primary > bestCost * minImprovement
//
// i.e. the threshold scales with the current best cost, not the new one.
// On improvement the tracker updates its best cost and iteration and
// snapshots the model parameters.
//
// The signal is computed first; if the patience budget has then elapsed,
// ErrPatienceElapsed is returned alongside it and takes priority as a
// terminal condition.
//
// Validation does not mutate parameters, so the batches are evaluated
// concurrently; results are aggregated before anything else happens.
func (t *Tracker) Evaluate(ctx context.Context, iteration int, valid model.Dataset, m model.Model) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return NoImprovement, err
	}
	if len(valid) == 0 {
		return NoImprovement, errors.New("convergence: empty validation set")
	}

	reports, err := parallel.MapErr(len(valid), func(i int) (model.CostReport, error) {
		return m.Evaluate(valid[i])
	}, t.par)
	if err != nil {
		return NoImprovement, errors.Wrap(err, "convergence: validation evaluation failed")
	}
	costs := model.MeanReports(reports)

	signal := NoImprovement
	marker := ""
	if t.state.BestCost-costs.Primary() > t.state.BestCost*t.minImprovement {
		signal = Improved
		marker = " *"
		t.state.BestCost = costs.Primary()
		t.state.BestIteration = iteration
		t.state.BestParams = t.vec.Snapshot()
	}
	log.Infof("%d -- valid %s%s", iteration+1, model.FormatCosts(t.names, costs), marker)

	if iteration-t.state.BestIteration > t.patience {
		return signal, ErrPatienceElapsed
	}
	return signal, nil
}

// Restore overwrites the model parameters with the best validated snapshot.
func (t *Tracker) Restore() error {
	return t.vec.Restore(t.state.BestParams)
}
