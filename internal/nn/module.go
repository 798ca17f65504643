// Package nn implements the neural network building blocks of the seq2seq
// model: parameters, dense and embedding layers, dropout, recurrent layers
// over packed sequences, recurrent state handling and the loss.
//
// Layers are generic over the compute backend. Wrap the CPU backend with
// autodiff.New to train them.
package nn

import (
	"github.com/born-ml/seq2seq/internal/tensor"
)

// Module is implemented by single-input layers.
//
//	layer := nn.NewLinear(128, 64, backend, rng)
//	y := layer.Forward(x) // [..., 128] -> [..., 64]
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter[B]
}

// Parameterized is anything that owns trainable parameters, including
// multi-input components such as encoders and decoders.
type Parameterized[B tensor.Backend] interface {
	Parameters() []*Parameter[B]
}

// Trainable is implemented by components whose behavior differs between
// training and evaluation (dropout).
type Trainable interface {
	Train(training bool)
}

// UniqueParameters flattens parameter lists, keeping the first occurrence of
// every parameter. Tied weights therefore appear once.
func UniqueParameters[B tensor.Backend](groups ...[]*Parameter[B]) []*Parameter[B] {
	seen := make(map[*Parameter[B]]bool)
	var out []*Parameter[B]
	for _, group := range groups {
		for _, p := range group {
			if p == nil || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// WithPrefix renames params to "prefix.name" and returns them.
func WithPrefix[B tensor.Backend](prefix string, params []*Parameter[B]) []*Parameter[B] {
	for _, p := range params {
		p.name = prefix + "." + p.name
	}
	return params
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}
