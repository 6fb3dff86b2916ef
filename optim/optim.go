// Copyright 2026 The Anneal Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/anneal-ml/anneal/internal/gradient"
	"github.com/anneal-ml/anneal/internal/optim"
)

// Rule is the per-batch parameter update strategy driven by the training
// loop.
type Rule = optim.Rule

// Annealer is implemented by rules with a tunable learning rate.
type Annealer = optim.Annealer

// Policy controls gradient clipping and delta application.
type Policy = gradient.Policy

// SGD (Stochastic Gradient Descent / Nesterov Accelerated Gradient)

// SGD is stochastic gradient descent, switching to Nesterov accelerated
// momentum when momentum is above zero.
type SGD = optim.SGD

// SGDConfig contains configuration for the SGD rule.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD rule.
//
// Example:
//
//	rule := optim.NewSGD(optim.SGDConfig{
//	    LearningRate: 0.1,
//	    Momentum:     0.9,
//	})
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Global (external scalar-vector minimizer)

// Global runs an external minimizer over the flattened parameter vector.
type Global = optim.Global

// GlobalConfig contains configuration for the Global rule.
type GlobalConfig = optim.GlobalConfig

// NewGlobal creates a new Global rule.
//
// Example:
//
//	rule, err := optim.NewGlobal(optim.GlobalConfig{
//	    Method:          "lbfgs",
//	    InnerIterations: 3,
//	})
func NewGlobal(config GlobalConfig) (*Global, error) {
	return optim.NewGlobal(config)
}
