// Copyright 2026 The Anneal Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package train

import (
	"github.com/anneal-ml/anneal/internal/optim"
	"github.com/anneal-ml/anneal/internal/train"
)

// Trainer fits a model's parameters against a training set.
type Trainer = train.Trainer

// Config enumerates every recognized training option.
type Config = train.Config

// Result summarizes a finished training run.
type Result = train.Result

// Status is the terminal state of a training run.
type Status = train.Status

// Terminal states.
const (
	StatusConverged   = train.StatusConverged
	StatusInterrupted = train.StatusInterrupted
	StatusExhausted   = train.StatusExhausted
)

// Recognized method names for New.
const (
	MethodSGD       = train.MethodSGD
	MethodNAG       = train.MethodNAG
	MethodGlobal    = train.MethodGlobal
	MethodLBFGS     = train.MethodLBFGS
	MethodBFGS      = train.MethodBFGS
	MethodCG        = train.MethodCG
	MethodSample    = train.MethodSample
	MethodLayerwise = train.MethodLayerwise
	MethodHF        = train.MethodHF
	MethodLM        = train.MethodLM
	MethodFORCE     = train.MethodFORCE
)

// ErrNotImplemented marks trainer variants that are documented but
// deliberately unfinished.
var ErrNotImplemented = train.ErrNotImplemented

// Loop is the iterative training state machine.
type Loop = train.Loop

// Sample is the reservoir-sampling weight initializer.
type Sample = train.Sample

// Layerwise is the layerwise pretraining wrapper.
type Layerwise = train.Layerwise

// CheckpointSaver persists an intermediate model under a deterministic name.
type CheckpointSaver = train.CheckpointSaver

// New constructs the trainer for a method name.
//
// Example:
//
//	trainer, err := train.New(train.MethodSGD, train.Config{
//	    LearningRate: 0.1,
//	    Momentum:     0.9,
//	    Patience:     50,
//	})
func New(method string, cfg Config) (Trainer, error) {
	return train.New(method, cfg)
}

// NewLoop creates a training loop over the SGD/NAG rule configured by cfg.
func NewLoop(cfg Config) (*Loop, error) {
	return train.NewLoop(cfg)
}

// NewGlobalLoop creates a training loop over the external-minimizer rule.
func NewGlobalLoop(cfg Config) (*Loop, error) {
	return train.NewGlobalLoop(cfg)
}

// NewLoopWithRule creates a training loop over a caller-supplied rule.
func NewLoopWithRule(cfg Config, rule optim.Rule) (*Loop, error) {
	return train.NewLoopWithRule(cfg, rule)
}

// NewSample creates the reservoir-sampling weight initializer.
func NewSample(cfg Config) (*Sample, error) {
	return train.NewSample(cfg)
}

// NewLayerwise creates the layerwise pretrainer.
func NewLayerwise(cfg Config, saver CheckpointSaver) (*Layerwise, error) {
	return train.NewLayerwise(cfg, saver)
}

// CheckpointName returns the deterministic checkpoint name for a model
// fingerprint and tap depth.
func CheckpointName(fingerprint string, depth int) string {
	return train.CheckpointName(fingerprint, depth)
}

// FileCheckpointSaver returns a saver writing each checkpoint as a .anneal
// snapshot file under dir.
func FileCheckpointSaver(dir string) CheckpointSaver {
	return train.FileCheckpointSaver(dir)
}
