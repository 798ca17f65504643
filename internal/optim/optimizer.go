// Package optim implements the optimizers used to train the seq2seq model.
//
// This package provides:
//   - Optimizer interface: Step, ZeroGrad and learning-rate access
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - ClipGradNorm: global L2 gradient clipping
//
// Updates are applied in place on the parameter storage, so they are never
// recorded on an autodiff tape and gradient maps keyed by *RawTensor stay
// valid across steps.
//
// Example usage:
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
//
//	for _, batch := range batches {
//	    backend.Tape().StartRecording()
//	    loss := lossFn.Forward(model.Forward(batch))
//	    grads := autodiff.Backward(loss, backend)
//	    grads, _ = optim.ClipGradNorm(model.Parameters(), grads, 5)
//	    opt.Step(grads)
//	    opt.ZeroGrad()
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// ErrStateMismatch is returned when a saved optimizer state does not fit the
// parameters it is loaded into.
var ErrStateMismatch = errors.New("optimizer state mismatch")

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	// Parameters absent from the map are left untouched.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)

	// StateDict exports the optimizer buffers keyed by parameter name.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores buffers produced by StateDict.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Kind names an optimizer algorithm.
type Kind string

// Supported optimizers.
const (
	KindAdam Kind = "adam"
	KindSGD  Kind = "sgd"
)

// Config selects and configures an optimizer.
type Config struct {
	Kind     Kind    `json:"kind" yaml:"kind"`
	LR       float32 `json:"lr" yaml:"lr"`
	Momentum float32 `json:"momentum,omitempty" yaml:"momentum,omitempty"` // SGD only
	Beta1    float32 `json:"beta1,omitempty" yaml:"beta1,omitempty"`       // Adam only
	Beta2    float32 `json:"beta2,omitempty" yaml:"beta2,omitempty"`       // Adam only
	Eps      float32 `json:"eps,omitempty" yaml:"eps,omitempty"`           // Adam only
}

// New builds the optimizer named by cfg.Kind. An empty kind means Adam.
func New[B tensor.Backend](params []*nn.Parameter[B], cfg Config, backend B) (Optimizer, error) {
	switch cfg.Kind {
	case KindAdam, "":
		return NewAdam(params, AdamConfig{
			LR:    cfg.LR,
			Betas: [2]float32{cfg.Beta1, cfg.Beta2},
			Eps:   cfg.Eps,
		}, backend), nil
	case KindSGD:
		if cfg.Momentum < 0 || cfg.Momentum >= 1 {
			return nil, fmt.Errorf("sgd momentum %v outside [0, 1)", cfg.Momentum)
		}
		return NewSGD(params, SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}, backend), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Kind)
	}
}

// Hyperparameters returns the numeric settings of cfg for checkpoint metadata.
func (c Config) Hyperparameters() map[string]float64 {
	m := map[string]float64{"lr": float64(c.LR)}
	switch c.Kind {
	case KindSGD:
		m["momentum"] = float64(c.Momentum)
	default:
		m["beta1"] = float64(c.Beta1)
		m["beta2"] = float64(c.Beta2)
		m["eps"] = float64(c.Eps)
	}
	return m
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// loadBuffer validates a saved buffer against param and returns a private copy.
func loadBuffer[B tensor.Backend](param *nn.Parameter[B], key string, raw *tensor.RawTensor) (*tensor.RawTensor, error) {
	if raw.DType() != tensor.Float32 {
		return nil, fmt.Errorf("%w: %s has dtype %s", ErrStateMismatch, key, raw.DType())
	}
	if !raw.Shape().Equal(param.Tensor().Shape()) {
		return nil, fmt.Errorf("%w: %s has shape %v, parameter %s has %v",
			ErrStateMismatch, key, raw.Shape(), param.Name(), param.Tensor().Shape())
	}
	return raw.Clone(), nil
}
