// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used to train seq2seq models.
//
//	opt, err := optim.New(model.Parameters(), optim.Config{Kind: optim.KindAdam, LR: 1e-3}, backend)
//	...
//	norm, grads := optim.ClipGradNorm(model.Parameters(), grads, 5)
//	opt.Step(grads)
//	opt.ZeroGrad()
//
// Optimizer state is keyed by parameter name, so StateDict can be saved
// next to the model weights and loaded into a freshly built model.
package optim

import (
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/optim"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Optimizer updates parameters from gradients.
type Optimizer = optim.Optimizer

// Config selects and configures an optimizer.
type Config = optim.Config

// Kind names an optimizer.
type Kind = optim.Kind

// Optimizer kinds.
const (
	KindAdam = optim.KindAdam
	KindSGD  = optim.KindSGD
)

// ErrStateMismatch is returned when a state dict does not fit the parameters.
var ErrStateMismatch = optim.ErrStateMismatch

// New creates the optimizer described by cfg.
func New[B tensor.Backend](params []*nn.Parameter[B], cfg Config, backend B) (Optimizer, error) {
	return optim.New(params, cfg, backend)
}

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam is the Adam optimizer with bias correction.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}

// ClipGradNorm scales grads so that their global L2 norm is at most
// maxNorm. It returns the norm before clipping and never modifies grads.
func ClipGradNorm[B tensor.Backend](
	params []*nn.Parameter[B],
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	maxNorm float64,
) (float64, map[*tensor.RawTensor]*tensor.RawTensor) {
	return optim.ClipGradNorm(params, grads, maxNorm)
}
