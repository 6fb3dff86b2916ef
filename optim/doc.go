// Copyright 2026 The Anneal Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the parameter update rules driven by the training
// loop.
//
// # Overview
//
// This package contains:
//   - SGD: stochastic gradient descent, switching to Nesterov accelerated
//     momentum when momentum is enabled
//   - Global: a wrapper around an external scalar-vector minimizer (L-BFGS,
//     BFGS, CG, Nelder-Mead) over the flattened parameter vector
//   - Rule interface for custom update strategies
//
// # Basic Usage
//
//	import (
//	    "github.com/anneal-ml/anneal/optim"
//	    "github.com/anneal-ml/anneal/train"
//	)
//
//	func main() {
//	    rule := optim.NewSGD(optim.SGDConfig{
//	        LearningRate: 0.1,
//	        Momentum:     0.9,
//	    })
//
//	    loop, err := train.NewLoopWithRule(train.Config{Iterations: 500}, rule)
//	    if err != nil {
//	        panic(err)
//	    }
//	    result, err := loop.Train(ctx, m, trainSet, validSet)
//	    ...
//	}
//
// Most callers do not construct rules directly: train.New builds the right
// rule from a method name and a train.Config.
package optim
