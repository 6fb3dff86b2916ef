// Copyright 2026 The Anneal Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train orchestrates training runs for differentiable models.
//
// # Overview
//
// A Trainer pulls batches from the training set, drives an update rule that
// mutates the model's parameters in place, periodically evaluates on the
// validation set, anneals the learning rate on stagnation, and stops on one
// of three terminal conditions:
//
//   - StatusConverged: the patience budget elapsed without improvement
//   - StatusInterrupted: the context was cancelled
//   - StatusExhausted: the iteration budget ran out
//
// Every terminal state makes the same guarantee: the model's parameters
// equal the best validated snapshot, never a mid-update state.
//
// # Basic Usage
//
//	import (
//	    "context"
//
//	    "github.com/anneal-ml/anneal/train"
//	)
//
//	func main() {
//	    trainer, err := train.New(train.MethodSGD, train.Config{
//	        LearningRate: 0.1,
//	        Momentum:     0.9,
//	        Iterations:   1000,
//	        Patience:     100,
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    result, err := trainer.Train(context.Background(), m, trainSet, validSet)
//	    if err != nil {
//	        panic(err)
//	    }
//	    fmt.Println(result.Status, result.BestCost)
//	}
//
// # Methods
//
// train.New recognizes: "sgd"/"nag" (minibatch gradient descent, Nesterov
// momentum when Momentum > 0), "global"/"lbfgs"/"bfgs"/"cg" (external
// scalar-vector minimizer over the flat parameter vector), "sample"
// (reservoir-sampling weight initializer), "layerwise" (layerwise
// pretraining wrapper), and the deliberately unfinished "hf", "lm" and
// "force", which fail with ErrNotImplemented at construction.
package train
