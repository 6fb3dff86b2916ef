// Package train orchestrates training runs: it owns the iterative loop
// state machine, the one-shot strategies built on the same Trainer contract,
// and the method registry that turns a method name plus a Config into a
// ready Trainer.
package train

import (
	"github.com/pkg/errors"
)

// ErrNotImplemented marks trainer variants that are documented but
// deliberately unfinished. Construction fails fast and loudly instead of
// silently no-opping.
var ErrNotImplemented = errors.New("train: not implemented")

// Recognized method names.
const (
	MethodSGD       = "sgd"        // plain SGD, or NAG when Momentum > 0
	MethodNAG       = "nag"        // alias of sgd; requires Momentum > 0 to differ
	MethodGlobal    = "global"     // external minimizer, method from Config.GlobalMethod
	MethodLBFGS     = "lbfgs"      // external minimizer shortcuts
	MethodBFGS      = "bfgs"       //
	MethodCG        = "cg"         //
	MethodSample    = "sample"     // reservoir-sampling weight initializer
	MethodLayerwise = "layerwise"  // layerwise pretraining wrapper
	MethodHF        = "hf"         // hessian-free external solver; not implemented
	MethodLM        = "lm"         // Levenberg-Marquardt; not implemented
	MethodFORCE     = "force"      // FORCE recurrent trainer; not implemented
)

// New constructs the trainer for a method name. Defaults are applied to and
// the configuration validated for every method; unfinished variants fail
// here with ErrNotImplemented.
func New(method string, cfg Config) (Trainer, error) {
	switch method {
	case MethodSGD, MethodNAG:
		return NewLoop(cfg)
	case MethodGlobal:
		return NewGlobalLoop(cfg)
	case MethodLBFGS, MethodBFGS, MethodCG:
		cfg.GlobalMethod = method
		return NewGlobalLoop(cfg)
	case MethodSample:
		return NewSample(cfg)
	case MethodLayerwise:
		return NewLayerwise(cfg, nil)
	case MethodHF:
		return nil, errors.Wrap(ErrNotImplemented, "hessian-free trainer")
	case MethodLM:
		return nil, errors.Wrap(ErrNotImplemented, "levenberg-marquardt trainer")
	case MethodFORCE:
		return nil, errors.Wrap(ErrNotImplemented, "FORCE trainer")
	}
	return nil, errors.Errorf("train: unknown method %q", method)
}
