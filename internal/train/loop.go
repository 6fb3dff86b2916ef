package train

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/anneal-ml/anneal/internal/convergence"
	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/optim"
)

// Status is the terminal state of a training run.
type Status int

const (
	// StatusRunning is the non-terminal state; it never appears in a Result.
	StatusRunning Status = iota
	// StatusConverged means the patience budget elapsed with no improvement.
	StatusConverged
	// StatusInterrupted means training was cancelled externally.
	StatusInterrupted
	// StatusExhausted means the iteration budget ran out.
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusConverged:
		return "converged"
	case StatusInterrupted:
		return "interrupted"
	case StatusExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Result summarizes a finished training run. Whatever the terminal status,
// the model's parameters equal the best validated snapshot when Train
// returns.
type Result struct {
	Status        Status
	Iterations    int // iterations fully completed
	BestCost      float64
	BestIteration int
}

// Trainer fits a model's parameters against a training set, validating
// against a separate validation set.
type Trainer interface {
	// Train runs to a terminal state and restores the best validated
	// parameters into the model before returning.
	Train(ctx context.Context, m model.Model, trainSet, validSet model.Dataset) (Result, error)
}

// Loop is the iterative training state machine: periodic validation through
// a convergence tracker, per-batch parameter updates through an update rule,
// learning-rate annealing on stagnation, and best-parameters restoration on
// every exit path.
type Loop struct {
	cfg     Config
	every   int // iterations between validation checkpoints
	newRule func() (optim.Rule, error)
}

// NewLoop creates a training loop over the SGD/NAG rule configured by cfg.
func NewLoop(cfg Config) (*Loop, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Loop{
		cfg:   cfg,
		every: cfg.ValidationFrequency,
		newRule: func() (optim.Rule, error) {
			return optim.NewSGD(optim.SGDConfig{
				LearningRate:     cfg.LearningRate,
				Momentum:         cfg.Momentum,
				MaxGradientNorm:  cfg.MaxGradientNorm,
				ClipParamsAtZero: cfg.ClipParamsAtZero,
			}), nil
		},
	}, nil
}

// NewGlobalLoop creates a training loop over the external-minimizer rule.
// The configured validation frequency becomes the minimizer's inner
// iteration bound and validation runs every outer iteration, so the
// minimizer always restarts from a freshly validated snapshot.
func NewGlobalLoop(cfg Config) (*Loop, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := optim.NewGlobal(optim.GlobalConfig{Method: cfg.GlobalMethod}); err != nil {
		return nil, err
	}
	return &Loop{
		cfg:   cfg,
		every: 1,
		newRule: func() (optim.Rule, error) {
			return optim.NewGlobal(optim.GlobalConfig{
				Method:          cfg.GlobalMethod,
				InnerIterations: cfg.ValidationFrequency,
			})
		},
	}, nil
}

// NewLoopWithRule creates a training loop over a caller-supplied rule.
// The rule's memory must not be shared across runs.
func NewLoopWithRule(cfg Config, rule optim.Rule) (*Loop, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Loop{
		cfg:     cfg,
		every:   cfg.ValidationFrequency,
		newRule: func() (optim.Rule, error) { return rule, nil },
	}, nil
}

// Train implements Trainer.
//
// Transitions per iteration i:
//   - i mod validationFrequency == 0: evaluate on the validation set.
//     Patience elapsed converges; no improvement anneals the learning rate;
//     improvement continues unchanged.
//   - One full pass over the training set through the update rule.
//   - Cancellation during either step interrupts immediately. Partial work
//     already applied to the parameters stays applied for the moment, but
//     only the best snapshot survives the terminal restoration.
//
// After the configured iteration budget with no other transition, the run
// is exhausted. All terminal states restore the best validated parameters.
func (l *Loop) Train(ctx context.Context, m model.Model, trainSet, validSet model.Dataset) (Result, error) {
	rule, err := l.newRule()
	if err != nil {
		return Result{}, err
	}
	tracker := convergence.NewTracker(m, l.cfg.Patience, l.cfg.MinImprovement)

	status := StatusRunning
	iterations := 0
	var runErr error

loop:
	for i := 0; i < l.cfg.Iterations; i++ {
		if i%l.every == 0 {
			signal, err := tracker.Evaluate(ctx, i, validSet, m)
			switch {
			case isCancellation(err):
				log.Info("interrupted!")
				status = StatusInterrupted
				break loop
			case errors.Is(err, convergence.ErrPatienceElapsed):
				log.Info("patience elapsed, stopping")
				status = StatusConverged
				break loop
			case err != nil:
				runErr = err
				break loop
			case signal == convergence.NoImprovement:
				if a, ok := rule.(optim.Annealer); ok {
					a.Anneal(l.cfg.LearningRateDecay)
				}
			}
		}

		reports, norms, err := rule.EpochStep(ctx, m, trainSet, tracker.State().BestParams)
		if isCancellation(err) {
			log.Info("interrupted!")
			status = StatusInterrupted
			break loop
		}
		if err != nil {
			runErr = err
			break loop
		}
		l.logIteration(rule, m, i, reports, norms)
		iterations = i + 1
	}

	if status == StatusRunning && runErr == nil {
		status = StatusExhausted
	}

	// Guaranteed on every exit path: the model leaves with the best
	// validated parameters, never a mid-update state.
	if err := tracker.Restore(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "train: restoring best parameters failed")
	}
	if runErr != nil {
		return Result{}, runErr
	}

	state := tracker.State()
	log.Infof("%s -- best valid %s=%.4f at iteration %d", status, model.PrimaryCost, state.BestCost, state.BestIteration+1)
	return Result{
		Status:        status,
		Iterations:    iterations,
		BestCost:      state.BestCost,
		BestIteration: state.BestIteration,
	}, nil
}

func (l *Loop) logIteration(rule optim.Rule, m model.Model, i int, reports []model.CostReport, norms [][]float64) {
	costDesc := model.FormatCosts(m.CostNames(), model.MeanReports(reports))

	line := fmt.Sprintf("%s %d/%d", rule.Name(), i+1, l.cfg.Iterations)
	if a, ok := rule.(optim.Annealer); ok {
		line += fmt.Sprintf(" @%.2e", a.LearningRate())
	}
	line += " -- train " + costDesc
	if gradDesc := formatGradNorms(m, norms); gradDesc != "" {
		line += " -- grad " + gradDesc
	}
	log.Info(line)
}

// formatGradNorms renders the mean per-parameter gradient norms across an
// epoch as "name=norm" pairs in parameter order.
func formatGradNorms(m model.Model, norms [][]float64) string {
	if len(norms) == 0 {
		return ""
	}
	params := m.Parameters()
	mean := make([]float64, len(params))
	for _, batchNorms := range norms {
		for i, n := range batchNorms {
			mean[i] += n
		}
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s=%.4f", p.Name(), mean[i]/float64(len(norms)))
	}
	return strings.Join(parts, " ")
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
