package train

import (
	"github.com/pkg/errors"
)

// Config enumerates every recognized training option up front. Zero values
// select the documented defaults; the whole structure is validated once at
// trainer construction.
type Config struct {
	// ValidationFrequency is the number of iterations between validation
	// checkpoints. Default: 3. For global-minimizer methods it instead
	// bounds the inner iterations per outer step, and validation runs every
	// outer iteration.
	ValidationFrequency int

	// MinImprovement is the fraction of the best cost by which a validation
	// cost must undercut it to count as an improvement. Default: 0.
	MinImprovement float64

	// Iterations is the total iteration budget. Default: 1000.
	Iterations int

	// Patience is the number of iterations without improvement tolerated
	// before stopping. Default: 100 (a zero value selects the default).
	Patience int

	// Momentum selects Nesterov accelerated momentum when above zero.
	// Default: 0, plain SGD.
	Momentum float64

	// MaxGradientNorm bounds the L2 norm of each gradient tensor.
	// Default: 1e5.
	MaxGradientNorm float64

	// LearningRate is the SGD step size. Default: 0.1.
	LearningRate float64

	// LearningRateDecay is the annealing fraction applied on a stagnant
	// validation checkpoint: lr *= 1 - decay. Default: 0.1.
	LearningRateDecay float64

	// ClipParamsAtZero clamps parameter elements whose sign flips through
	// zero during an update to exactly zero. Default: false.
	ClipParamsAtZero bool

	// GlobalMethod selects the external minimizer for the global method:
	// "lbfgs", "bfgs", "cg" or "neldermead". Default: "lbfgs".
	GlobalMethod string

	// Seed seeds the random source of the sample initializer. Default: 0.
	Seed int64
}

// withDefaults returns the config with defaults applied to unset options.
func (c Config) withDefaults() Config {
	if c.ValidationFrequency == 0 {
		c.ValidationFrequency = 3
	}
	if c.Iterations == 0 {
		c.Iterations = 1000
	}
	if c.Patience == 0 {
		c.Patience = 100
	}
	if c.MaxGradientNorm == 0 {
		c.MaxGradientNorm = 1e5
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.LearningRateDecay == 0 {
		c.LearningRateDecay = 0.1
	}
	if c.GlobalMethod == "" {
		c.GlobalMethod = "lbfgs"
	}
	return c
}

// validate checks option ranges after defaults have been applied.
func (c Config) validate() error {
	if c.ValidationFrequency < 1 {
		return errors.Errorf("train: validation frequency %d outside allowed range [1, Inf)", c.ValidationFrequency)
	}
	if c.Iterations < 1 {
		return errors.Errorf("train: iteration budget %d outside allowed range [1, Inf)", c.Iterations)
	}
	if c.Patience < 0 {
		return errors.Errorf("train: patience %d outside allowed range [0, Inf)", c.Patience)
	}
	if c.MinImprovement < 0 {
		return errors.Errorf("train: min improvement %g outside allowed range [0, Inf)", c.MinImprovement)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.Errorf("train: momentum %g outside allowed range [0, 1)", c.Momentum)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("train: learning rate %g outside allowed range (0, Inf)", c.LearningRate)
	}
	if c.LearningRateDecay < 0 || c.LearningRateDecay > 1 {
		return errors.Errorf("train: learning rate decay %g outside allowed range [0, 1]", c.LearningRateDecay)
	}
	if c.MaxGradientNorm <= 0 {
		return errors.Errorf("train: max gradient norm %g outside allowed range (0, Inf)", c.MaxGradientNorm)
	}
	return nil
}
