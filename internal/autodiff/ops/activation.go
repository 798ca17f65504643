package ops

import "github.com/born-ml/seq2seq/internal/tensor"

// TanhOp: d tanh(x)/dx = 1 - tanh²(x), computed from the saved output.
type TanhOp struct{ unaryOp }

// NewTanhOp creates a new TanhOp.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{unaryOp{input: input, output: output}}
}

// Backward computes grad * (1 - y²).
func (op *TanhOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(grad, oneMinusSquare(op.output, backend))}
}

// SigmoidOp: dσ(x)/dx = σ(x)(1 - σ(x)).
type SigmoidOp struct{ unaryOp }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unaryOp{input: input, output: output}}
}

// Backward computes grad * y * (1 - y).
func (op *SigmoidOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	y := op.output
	oneMinus := backend.AddScalar(backend.MulScalar(y, -1), 1)
	return []*tensor.RawTensor{backend.Mul(grad, backend.Mul(y, oneMinus))}
}

// SoftmaxOp normalizes along dim.
//
//	dL/dx = y * (dL/dy - Σ(dL/dy * y))
type SoftmaxOp struct {
	unaryOp
	dim int
}

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(input *tensor.RawTensor, dim int, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{unaryOp: unaryOp{input: input, output: output}, dim: dim}
}

// Backward applies the softmax Jacobian-vector product.
// Positions with zero probability receive zero gradient.
func (op *SoftmaxOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	y := op.output
	dot := backend.SumDim(backend.Mul(grad, y), op.dim, true)
	return []*tensor.RawTensor{backend.Mul(y, backend.Sub(grad, dot))}
}

// SumDimOp sums along dim; the gradient is broadcast back over it.
type SumDimOp struct {
	unaryOp
	dim int
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(input *tensor.RawTensor, dim int, output *tensor.RawTensor) *SumDimOp {
	return &SumDimOp{
		unaryOp: unaryOp{input: input, output: output},
		dim:     input.Shape().NormalizeDim(dim),
	}
}

// Backward expands the gradient to the input shape.
func (op *SumDimOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	kept := inShape.Clone()
	kept[op.dim] = 1
	g := backend.Reshape(grad, kept)
	return []*tensor.RawTensor{backend.Add(zerosLike(inShape, grad.Device()), g)}
}
