package optim

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/anneal-ml/anneal/internal/model"
	"github.com/anneal-ml/anneal/internal/parallel"
	"github.com/anneal-ml/anneal/internal/param"
)

// Global wraps an external scalar-vector minimizer around the flattened
// parameter vector.
//
// Each EpochStep runs the minimizer for a bounded number of inner
// iterations, starting from the best validated flat snapshot, and commits
// the result into the model. The objective and gradient seen by the
// minimizer are means over the whole training batch set.
//
// The minimizer receives an explicit, statically declared configuration
// subset (method and iteration bound); no other training options leak
// through to it.
type Global struct {
	methodName string
	newMethod  func() optimize.Method
	inner      int
	par        parallel.Config
}

// GlobalConfig holds configuration for the Global rule.
type GlobalConfig struct {
	// Method selects the external minimizer: one of "lbfgs" (default),
	// "bfgs", "cg" or "neldermead".
	Method string

	// InnerIterations bounds the minimizer's major iterations per
	// EpochStep. Defaults to 1.
	InnerIterations int
}

var globalMethods = map[string]func() optimize.Method{
	"lbfgs":      func() optimize.Method { return &optimize.LBFGS{} },
	"bfgs":       func() optimize.Method { return &optimize.BFGS{} },
	"cg":         func() optimize.Method { return &optimize.CG{} },
	"neldermead": func() optimize.Method { return &optimize.NelderMead{} },
}

// NewGlobal creates a Global rule. Unknown methods fail at construction.
func NewGlobal(config GlobalConfig) (*Global, error) {
	if config.Method == "" {
		config.Method = "lbfgs"
	}
	newMethod, ok := globalMethods[config.Method]
	if !ok {
		return nil, errors.Errorf("optim: unknown global method %q", config.Method)
	}
	if config.InnerIterations <= 0 {
		config.InnerIterations = 1
	}
	return &Global{
		methodName: config.Method,
		newMethod:  newMethod,
		inner:      config.InnerIterations,
		par:        parallel.DefaultConfig(),
	}, nil
}

// Name implements Rule.
func (g *Global) Name() string {
	return g.methodName
}

// EpochStep implements Rule. It minimizes the mean primary cost over the
// training set for at most the configured inner iterations, starting from
// the best snapshot, and applies the minimizer's result to the model. The
// returned reports hold one entry: the mean cost report at the new
// position. No per-batch gradient norms are produced.
func (g *Global) EpochStep(ctx context.Context, m model.Model, train model.Dataset, best param.Snapshot) ([]model.CostReport, [][]float64, error) {
	if len(train) == 0 {
		return nil, nil, errors.New("optim: empty training set")
	}
	vec := param.NewVector(m.Parameters())

	x0 := vec.Flatten()
	if best != nil {
		x0 = best.Flat()
		if len(x0) != vec.FlatLen() {
			return nil, nil, errors.WithStack(&param.ShapeMismatchError{Want: vec.FlatLen(), Got: len(x0)})
		}
	}

	// The minimizer's callbacks cannot return errors; the first model or
	// cancellation error is captured here and surfaced as NaN, which stops
	// the minimizer.
	var evalErr error
	fail := func(err error) float64 {
		if evalErr == nil {
			evalErr = err
		}
		return math.NaN()
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			cost, err := g.objective(vec, m, train, x)
			if err != nil {
				return fail(err)
			}
			return cost
		},
		Grad: func(dst, x []float64) {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			if err := g.gradient(vec, m, train, x, dst); err != nil {
				fail(err)
			}
		},
	}

	settings := &optimize.Settings{MajorIterations: g.inner}
	result, err := optimize.Minimize(problem, x0, settings, g.newMethod())
	if evalErr != nil {
		return nil, nil, evalErr
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "optim: %s minimization failed", g.methodName)
	}

	// Commit the minimizer's final position into the model.
	if err := vec.Apply(result.X); err != nil {
		return nil, nil, err
	}
	reports, err := parallel.MapErr(len(train), func(i int) (model.CostReport, error) {
		return m.Evaluate(train[i])
	}, g.par)
	if err != nil {
		return nil, nil, errors.Wrap(err, "optim: evaluation after minimization failed")
	}
	return []model.CostReport{model.MeanReports(reports)}, nil, nil
}

// objective sets the model to the flat position x and returns the mean
// primary cost across the batch set.
func (g *Global) objective(vec *param.Vector, m model.Model, train model.Dataset, x []float64) (float64, error) {
	if err := vec.Apply(x); err != nil {
		return 0, err
	}
	total := 0.0
	for _, batch := range train {
		report, err := m.Evaluate(batch)
		if err != nil {
			return 0, err
		}
		total += report.Primary()
	}
	return total / float64(len(train)), nil
}

// gradient sets the model to the flat position x and writes the mean flat
// gradient across the batch set into dst.
func (g *Global) gradient(vec *param.Vector, m model.Model, train model.Dataset, x, dst []float64) error {
	if err := vec.Apply(x); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = 0
	}
	segments, err := vec.Unflatten(dst)
	if err != nil {
		return err
	}
	for _, batch := range train {
		grads, err := m.Gradients(batch)
		if err != nil {
			return err
		}
		for i, g := range grads {
			floats.Add(segments[i], g)
		}
	}
	floats.Scale(1/float64(len(train)), dst)
	return nil
}
