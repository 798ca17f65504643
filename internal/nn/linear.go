package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seq2seq/internal/tensor"
)

// Linear implements y = x @ W.T + b over the last dimension of x.
//
// W has shape [out, in]. Inputs of any rank ≥ 2 are flattened to
// [rows, in] for the matmul and restored afterwards, so [B, T, in] maps to
// [B, T, out].
//
//	layer := nn.NewLinear(784, 128, backend, rng)
//	y := layer.Forward(x) // [32, 784] -> [32, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features], nil without bias
}

// NewLinear creates a Linear layer with Xavier weights and zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, rng *rand.Rand) *Linear[B] {
	l := NewLinearNoBias(inFeatures, outFeatures, backend, rng)
	l.bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend))
	return l
}

// NewLinearNoBias creates a Linear layer without a bias term.
func NewLinearNoBias[B tensor.Backend](inFeatures, outFeatures int, backend B, rng *rand.Rand) *Linear[B] {
	w := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend, rng)
	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", w),
	}
}

// NewLinearWithWeight creates a Linear layer around an existing weight
// parameter of shape [out, in], with its own zero bias. The layer shares the
// parameter: updates through either owner are seen by both.
func NewLinearWithWeight[B tensor.Backend](weight *Parameter[B], backend B) *Linear[B] {
	shape := weight.Tensor().Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("NewLinearWithWeight: weight must be 2D [out, in], got %v", shape))
	}
	return &Linear[B]{
		inFeatures:  shape[1],
		outFeatures: shape[0],
		weight:      weight,
		bias:        NewParameter("bias", Zeros(tensor.Shape{shape[0]}, backend)),
	}
}

// Forward computes x @ W.T + b.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Linear.Forward: expected at least 2D input, got shape %v", shape))
	}
	if shape[len(shape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[len(shape)-1]))
	}

	x := input
	if len(shape) > 2 {
		x = input.Reshape(-1, l.inFeatures)
	}

	output := x.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}

	if len(shape) > 2 {
		outShape := append(shape[:len(shape)-1:len(shape)-1], l.outFeatures)
		output = output.Reshape(outShape...)
	}
	return output
}

// Parameters returns [weight, bias], or [weight] without bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
