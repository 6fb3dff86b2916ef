package optim

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/anneal-ml/anneal/internal/gradient"
	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/param"
)

// SGD implements stochastic gradient descent with optional Nesterov
// accelerated momentum.
//
// Update rule without momentum, per batch and parameter:
//
//	p = p - lr * clip(grad(p))
//
// With momentum m the rule becomes Nesterov's accelerated gradient (NAG):
//
//	u = m * v                 // lookahead move
//	d = -lr * clip(grad(p + u))
//	p = p + u + d
//	v = u + d
//
// The difference from classical momentum is where the gradient is sampled:
// NAG evaluates it at the position momentum would already carry the
// parameters to. If momentum would overshoot, the gradient at the overshot
// point points backward, toward where we came from. (Sutskever, Martens,
// Dahl, and Hinton, ICML 2013, "On the importance of initialization and
// momentum in deep learning.")
//
// Example:
//
//	rule := optim.NewSGD(optim.SGDConfig{
//	    LearningRate: 0.1,
//	    Momentum:     0.9,
//	})
//	reports, norms, err := rule.EpochStep(ctx, m, trainSet, nil)
type SGD struct {
	lr       float64
	momentum float64
	policy   gradient.Policy

	// velocities holds one zero-initialized buffer per parameter, allocated
	// on the first pass and discarded with the rule.
	velocities [][]float64
}

// SGDConfig holds configuration for the SGD rule.
type SGDConfig struct {
	LearningRate     float64 // default: 0.1
	Momentum         float64 // default: 0.0 (plain SGD); range [0, 1)
	MaxGradientNorm  float64 // default: 1e5
	ClipParamsAtZero bool    // clamp sign-crossing parameter elements to zero
}

// NewSGD creates an SGD rule. Momentum zero gives plain stochastic gradient
// descent; momentum above zero switches the per-batch path to NAG.
func NewSGD(config SGDConfig) *SGD {
	// Set defaults
	if config.LearningRate == 0 {
		config.LearningRate = 0.1
	}
	if config.MaxGradientNorm == 0 {
		config.MaxGradientNorm = 1e5
	}
	return &SGD{
		lr:       config.LearningRate,
		momentum: config.Momentum,
		policy: gradient.Policy{
			MaxNorm:    config.MaxGradientNorm,
			ClipAtZero: config.ClipParamsAtZero,
		},
	}
}

// Name implements Rule.
func (s *SGD) Name() string {
	if s.momentum > 0 {
		return "nag"
	}
	return "sgd"
}

// LearningRate returns the current learning rate.
func (s *SGD) LearningRate() float64 {
	return s.lr
}

// Anneal multiplies the learning rate by (1 - decay).
func (s *SGD) Anneal(decay float64) {
	s.lr *= 1 - decay
}

// EpochStep implements Rule. The best snapshot is ignored: SGD always
// continues from the model's current position.
func (s *SGD) EpochStep(ctx context.Context, m model.Model, train model.Dataset, _ param.Snapshot) ([]model.CostReport, [][]float64, error) {
	params := m.Parameters()
	step := s.sgdStep
	if s.momentum > 0 {
		s.ensureVelocities(params)
		step = s.nagStep
	}

	var (
		reports []model.CostReport
		norms   [][]float64
	)
	for _, batch := range train {
		if err := ctx.Err(); err != nil {
			return reports, norms, err
		}
		report, batchNorms, err := step(m, batch, params)
		if err != nil {
			return reports, norms, err
		}
		reports = append(reports, report)
		norms = append(norms, batchNorms)
	}
	return reports, norms, nil
}

// sgdStep applies one plain minibatch update: fetch gradients, clip, move
// each parameter by -lr * gradient.
func (s *SGD) sgdStep(m model.Model, batch model.Batch, params []*param.Parameter) (model.CostReport, []float64, error) {
	grads, err := m.Gradients(batch)
	if err != nil {
		return nil, nil, errors.Wrap(err, "optim: gradient computation failed")
	}
	if len(grads) != len(params) {
		return nil, nil, errors.Errorf("optim: model returned %d gradients for %d parameters", len(grads), len(params))
	}

	norms := make([]float64, len(params))
	for i, p := range params {
		g := grads[i]
		norms[i] = s.policy.Rescale(g)
		floats.Scale(-s.lr, g)
		if err := s.policy.ApplyDelta(p, g); err != nil {
			return nil, nil, err
		}
	}

	report, err := m.TrainStep(batch)
	if err != nil {
		return nil, nil, errors.Wrap(err, "optim: train step failed")
	}
	return report, norms, nil
}

// nagStep applies one NAG minibatch update. All parameters first advance by
// their lookahead moves, then the gradient is fetched once at the lookahead
// position, then each parameter is stepped and its velocity rewritten.
func (s *SGD) nagStep(m model.Model, batch model.Batch, params []*param.Parameter) (model.CostReport, []float64, error) {
	// p' = p + u with u = momentum * v. The model now reflects the
	// lookahead position.
	moves := make([][]float64, len(params))
	for i, p := range params {
		u := make([]float64, len(s.velocities[i]))
		floats.AddScaled(u, s.momentum, s.velocities[i])
		floats.Add(p.Data(), u)
		moves[i] = u
	}

	grads, err := m.Gradients(batch)
	if err != nil {
		return nil, nil, errors.Wrap(err, "optim: gradient computation failed")
	}
	if len(grads) != len(params) {
		return nil, nil, errors.Errorf("optim: model returned %d gradients for %d parameters", len(grads), len(params))
	}

	// With d = -lr * grad(p + u):
	//
	//	v' = u + d
	//	p  = p' + d
	norms := make([]float64, len(params))
	for i, p := range params {
		g := grads[i]
		norms[i] = s.policy.Rescale(g)
		floats.Scale(-s.lr, g)
		if err := s.policy.ApplyDelta(p, g); err != nil {
			return nil, nil, err
		}
		copy(s.velocities[i], moves[i])
		floats.Add(s.velocities[i], g)
	}

	report, err := m.TrainStep(batch)
	if err != nil {
		return nil, nil, errors.Wrap(err, "optim: train step failed")
	}
	return report, norms, nil
}

func (s *SGD) ensureVelocities(params []*param.Parameter) {
	if s.velocities != nil {
		return
	}
	s.velocities = make([][]float64, len(params))
	for i, p := range params {
		s.velocities[i] = make([]float64, p.Len())
	}
}
